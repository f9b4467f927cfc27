// Package memory is an in-process secret store, for tests and local runs.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/secretstore"
)

type Store struct {
	mu      sync.Mutex
	secrets map[string][]byte
}

var _ secretstore.Store = &Store{}

func New() *Store {
	return &Store{secrets: map[string][]byte{}}
}

func (s *Store) Save(_ context.Context, path string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return xe.Classify(xe.Validation, "secret cannot be marshalled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[path] = b
	return nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.secrets[path]; !ok {
		return xe.New(xe.NotFound, "secret "+path+" is not found")
	}
	delete(s.secrets, path)
	return nil
}

// Get reads the secret at path into T.
func Get[T any](s *Store, path string) (T, bool) {
	var t T

	s.mu.Lock()
	b, ok := s.secrets[path]
	s.mu.Unlock()
	if !ok {
		return t, false
	}
	if err := json.Unmarshal(b, &t); err != nil {
		return t, false
	}
	return t, true
}

// Paths returns paths of stored secrets, sorted.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.secrets))
	for p := range s.secrets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
