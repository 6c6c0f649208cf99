// Package memory provides an in-memory settings.Store, used when settings
// need not outlive the process and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/settings"
)

// New returns an empty store.
func New() settings.Store {
	return &store{values: map[string]string{}}
}

type store struct {
	mu     sync.RWMutex
	values map[string]string
}

func (s *store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", errors.Mark(settings.ErrNotFound, 0)
	}
	return v, nil
}

func (s *store) Set(_ context.Context, key, value string) error {
	if err := settings.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := []string{}
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
