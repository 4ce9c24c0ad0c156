package uuid

import (
	"strings"
	"testing"
	"time"

	goUUID "github.com/google/uuid"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
}

func TestPrefixedGeneratorRoundTripsTime(t *testing.T) {
	t.Parallel()

	gen := NewPrefixed("cycle-")
	before := time.Now().Add(-time.Second)
	id, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if !strings.HasPrefix(id, "cycle-") {
		t.Fatalf("expected cycle- prefix, got %s", id)
	}
	created, err := gen.Time(id)
	if err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	if created.Before(before) || created.After(time.Now().Add(time.Second)) {
		t.Fatalf("embedded time %v is not near now", created)
	}
}

func TestTimeRejectsForeignIDs(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()
	if _, err := gen.Time("not-a-uuid"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := gen.Time(goUUID.NewString()); err == nil {
		t.Fatal("expected version error for uuid4")
	}
}
