// Package contentstore provides content-addressable blob storage for rule
// pack files. Blobs are keyed by the SHA-256 of their bytes, so storing the
// same content twice yields the same locator and retrieval is an integrity
// check by construction.
package contentstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when no blob exists for the given locator.
var ErrNotFound = errors.New("content not found")

// ContentStore stores and retrieves immutable byte blobs.
type ContentStore interface {
	// Put stores data and returns its locator. Identical bytes always map
	// to the same locator.
	Put(ctx context.Context, data []byte) (string, error)
	// Get returns the bytes previously stored under locator.
	Get(ctx context.Context, locator string) ([]byte, error)
}

// Locator computes the content address for data without storing it.
func Locator(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("sha256:%x", sum)
}

// MemoryStore is a thread-safe in-memory ContentStore.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	locator := Locator(data)

	s.mu.Lock()
	if _, ok := s.blobs[locator]; !ok {
		s.blobs[locator] = bytes.Clone(data)
	}
	s.mu.Unlock()

	return locator, nil
}

func (s *MemoryStore) Get(_ context.Context, locator string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[locator]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(data), nil
}
