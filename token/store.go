// Copyright 2026 Blink Labs Software
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

package token

import (
	"bytes"
	"slices"
	"sync"

	"github.com/google/btree"
)

// Store is the key/value backend holding token balances, delegations and
// vote checkpoints. Get returns nil for a missing key.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Floor returns the greatest key having the given prefix that sorts at
	// or before key, or a nil key when there is none.
	Floor(prefix, key []byte) ([]byte, []byte, error)
}

type memoryItem struct {
	key   []byte
	value []byte
}

func memoryItemLess(a, b memoryItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// MemoryStore is an ordered in-memory Store
type MemoryStore struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[memoryItem]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tree: btree.NewG(32, memoryItemLess),
	}
}

func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.tree.Get(memoryItem{key: key})
	if !ok {
		return nil, nil
	}
	return slices.Clone(item.value), nil
}

func (m *MemoryStore) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(memoryItem{
		key:   slices.Clone(key),
		value: slices.Clone(value),
	})
	return nil
}

func (m *MemoryStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Delete(memoryItem{key: key})
	return nil
}

func (m *MemoryStore) Floor(prefix, key []byte) ([]byte, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *memoryItem
	m.tree.DescendLessOrEqual(
		memoryItem{key: key},
		func(item memoryItem) bool {
			// The first item visited is the floor. Keys sharing a prefix are
			// contiguous, so a floor without the prefix means no match.
			if bytes.HasPrefix(item.key, prefix) {
				found = &item
			}
			return false
		},
	)
	if found == nil {
		return nil, nil, nil
	}
	return slices.Clone(found.key), slices.Clone(found.value), nil
}
