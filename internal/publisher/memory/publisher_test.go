package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "wallpapers", armada.StoredEvent{Name: "a.jpg"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "audit", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != "wallpapers" || msgs[1].Topic != "audit" {
		t.Fatalf("topics not recorded correctly: %+v", msgs)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherFail(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("unavailable")
	pub.Fail(boom)
	if _, err := pub.Publish(context.Background(), "wallpapers", "x"); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	pub.Fail(nil)
	if _, err := pub.Publish(context.Background(), "wallpapers", "x"); err != nil {
		t.Fatalf("unexpected error after clearing failure: %v", err)
	}
	if got := len(pub.Messages()); got != 1 {
		t.Fatalf("expected 1 message, got %d", got)
	}
}
