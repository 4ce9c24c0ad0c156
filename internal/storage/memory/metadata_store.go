package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

var _ armada.MetadataStore = (*MetadataStore)(nil)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("transaction already committed or rolled back")

// MetadataStore keeps wallpaper and keyword rows in memory. Writes are staged per transaction
// and become visible on Commit. Primary and foreign keys are enforced.
type MetadataStore struct {
	mu         sync.RWMutex
	wallpapers map[string]armada.WallpaperRecord
	keywords   []armada.KeywordRecord
	keywordSet map[armada.KeywordRecord]struct{}

	beginErr   error
	insertErr  error
	commitErr  error
	keywordErr map[string]error
}

// NewMetadataStore constructs an empty MetadataStore.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		wallpapers: make(map[string]armada.WallpaperRecord),
		keywordSet: make(map[armada.KeywordRecord]struct{}),
		keywordErr: make(map[string]error),
	}
}

// Begin opens a staging transaction.
func (s *MetadataStore) Begin(_ context.Context) (armada.MetadataTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &metadataTx{store: s, keywordSet: make(map[armada.KeywordRecord]struct{})}, nil
}

// Wallpaper returns the committed record for name.
func (s *MetadataStore) Wallpaper(name string) (armada.WallpaperRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.wallpapers[name]
	return rec, ok
}

// Wallpapers counts committed wallpaper rows.
func (s *MetadataStore) Wallpapers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wallpapers)
}

// Keywords returns the committed words for name in insertion order.
func (s *MetadataStore) Keywords(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var words []string
	for _, kw := range s.keywords {
		if kw.Name == name {
			words = append(words, kw.Word)
		}
	}
	return words
}

// FailBegin makes Begin return err.
func (s *MetadataStore) FailBegin(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginErr = err
}

// FailInsertWallpaper makes InsertWallpaper return err.
func (s *MetadataStore) FailInsertWallpaper(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr = err
}

// FailKeyword makes InsertKeyword return err for word.
func (s *MetadataStore) FailKeyword(word string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.keywordErr, word)
		return
	}
	s.keywordErr[word] = err
}

// FailCommit makes Commit return err without applying staged rows.
func (s *MetadataStore) FailCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

type metadataTx struct {
	store      *MetadataStore
	wallpaper  *armada.WallpaperRecord
	keywords   []armada.KeywordRecord
	keywordSet map[armada.KeywordRecord]struct{}
	done       bool
}

func (tx *metadataTx) InsertWallpaper(_ context.Context, record armada.WallpaperRecord) error {
	if tx.done {
		return ErrTxDone
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	if tx.store.insertErr != nil {
		return tx.store.insertErr
	}
	if _, ok := tx.store.wallpapers[record.Name]; ok || (tx.wallpaper != nil && tx.wallpaper.Name == record.Name) {
		return fmt.Errorf("wallpaper %s: %w", record.Name, armada.ErrDuplicate)
	}
	if tx.wallpaper != nil {
		return fmt.Errorf("transaction already holds wallpaper %s", tx.wallpaper.Name)
	}
	rec := record
	tx.wallpaper = &rec
	return nil
}

func (tx *metadataTx) InsertKeyword(_ context.Context, record armada.KeywordRecord) error {
	if tx.done {
		return ErrTxDone
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	if err := tx.store.keywordErr[record.Word]; err != nil {
		return err
	}
	_, committed := tx.store.wallpapers[record.Name]
	staged := tx.wallpaper != nil && tx.wallpaper.Name == record.Name
	if !committed && !staged {
		return fmt.Errorf("keyword %q references unknown wallpaper %s", record.Word, record.Name)
	}
	_, seen := tx.store.keywordSet[record]
	if _, pending := tx.keywordSet[record]; seen || pending {
		return fmt.Errorf("keyword %q for %s: %w", record.Word, record.Name, armada.ErrDuplicate)
	}
	tx.keywords = append(tx.keywords, record)
	tx.keywordSet[record] = struct{}{}
	return nil
}

func (tx *metadataTx) Commit(_ context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.store.commitErr != nil {
		return tx.store.commitErr
	}
	if tx.wallpaper != nil {
		if _, ok := tx.store.wallpapers[tx.wallpaper.Name]; ok {
			return fmt.Errorf("wallpaper %s: %w", tx.wallpaper.Name, armada.ErrDuplicate)
		}
		tx.store.wallpapers[tx.wallpaper.Name] = *tx.wallpaper
	}
	for _, kw := range tx.keywords {
		if _, ok := tx.store.keywordSet[kw]; ok {
			continue
		}
		tx.store.keywordSet[kw] = struct{}{}
		tx.store.keywords = append(tx.store.keywords, kw)
	}
	return nil
}

// Rollback discards staged rows. Rolling back a finished transaction is a no-op.
func (tx *metadataTx) Rollback(_ context.Context) error {
	tx.done = true
	tx.wallpaper = nil
	tx.keywords = nil
	return nil
}
