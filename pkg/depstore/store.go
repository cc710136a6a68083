// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package depstore provides the dependency-injection value store consumed by
// guard factories. It is plain key/value storage; the router only ever reads
// it through immutable snapshots.
package depstore

import (
	"sync"
)

// Snapshot is a point-in-time, read-only view of the store. It is passed
// unmodified into every guard-factory invocation for one transition attempt.
type Snapshot map[string]any

// Get returns the value for key and whether it is present.
func (s Snapshot) Get(key string) (any, bool) {
	v, ok := s[key]

	return v, ok
}

// Store is a concurrency-safe key/value store.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		values: make(map[string]any),
	}
}

// Set stores a value under key, replacing any existing value.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
}

// Get returns the value for key and whether it is present.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok
}

// Delete removes key from the store. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
}

// Snapshot returns a copy of the current contents. Later writes to the store
// are not visible through a snapshot already taken.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}

	return snap
}
