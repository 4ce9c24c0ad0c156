// Package memory provides in-process blob and metadata stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

var _ armada.BlobStore = (*BlobStore)(nil)

type blob struct {
	contentType string
	data        []byte
}

// BlobStore stores objects in-memory and returns pseudo URIs.
type BlobStore struct {
	mu           sync.RWMutex
	data         map[string]blob
	writeErrs    map[string]error
	deleteErrs   map[string]error
	existsErr    error
	writes       int
	deletedPaths []string
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data:       make(map[string]blob),
		writeErrs:  make(map[string]error),
		deleteErrs: make(map[string]error),
	}
}

// Exists reports whether key holds an object.
func (s *BlobStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.data[key]
	return ok, nil
}

// Write persists a copy of data and returns a memory:// URI.
func (s *BlobStore) Write(_ context.Context, key, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErrs[key]; err != nil {
		return "", err
	}
	s.data[key] = blob{contentType: contentType, data: append([]byte(nil), data...)}
	s.writes++
	return s.URI(key), nil
}

// Delete removes key. Absent keys are not an error.
func (s *BlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErrs[key]; err != nil {
		return err
	}
	delete(s.data, key)
	s.deletedPaths = append(s.deletedPaths, key)
	return nil
}

// URI returns the address Write reports for key.
func (s *BlobStore) URI(key string) string {
	return fmt.Sprintf("memory://%s", key)
}

// Get returns a copy of the object at key.
func (s *BlobStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), b.data...), b.contentType, true
}

// Keys lists stored keys in lexical order.
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Writes counts successful Write calls.
func (s *BlobStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Deleted lists keys passed to successful Delete calls, in call order.
func (s *BlobStore) Deleted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.deletedPaths...)
}

// FailWrite makes every Write to key return err. A nil err clears the failure.
func (s *BlobStore) FailWrite(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.writeErrs, key)
		return
	}
	s.writeErrs[key] = err
}

// FailDelete makes every Delete of key return err. A nil err clears the failure.
func (s *BlobStore) FailDelete(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.deleteErrs, key)
		return
	}
	s.deleteErrs[key] = err
}

// FailExists makes Exists return err for every key.
func (s *BlobStore) FailExists(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsErr = err
}
