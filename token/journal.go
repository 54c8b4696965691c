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
	"fmt"
	"slices"
)

// set and del write through to the store, recording the previous value
// while a snapshot is open

func (l *Ledger) set(key, value []byte) error {
	if err := l.record(key); err != nil {
		return err
	}
	return l.config.Store.Set(key, value)
}

func (l *Ledger) del(key []byte) error {
	if err := l.record(key); err != nil {
		return err
	}
	return l.config.Store.Delete(key)
}

func (l *Ledger) record(key []byte) error {
	if len(l.snapshots) == 0 {
		return nil
	}
	prev, err := l.config.Store.Get(key)
	if err != nil {
		return err
	}
	l.journal = append(
		l.journal,
		journalEntry{
			key:   slices.Clone(key),
			prev:  prev,
			found: prev != nil,
		},
	)
	return nil
}

// Snapshot opens a revision that can later be reverted or discarded.
// Snapshots nest.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := len(l.snapshots)
	l.snapshots = append(l.snapshots, len(l.journal))
	return id
}

// RevertToSnapshot undoes every write made since the snapshot was taken,
// closing it along with any snapshots opened after it
func (l *Ledger) RevertToSnapshot(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 0 || id >= len(l.snapshots) {
		return fmt.Errorf("%w: %d", ErrInvalidSnapshot, id)
	}
	mark := l.snapshots[id]
	for i := len(l.journal) - 1; i >= mark; i-- {
		entry := l.journal[i]
		var err error
		if entry.found {
			err = l.config.Store.Set(entry.key, entry.prev)
		} else {
			err = l.config.Store.Delete(entry.key)
		}
		if err != nil {
			return fmt.Errorf("revert snapshot %d: %w", id, err)
		}
	}
	l.journal = l.journal[:mark]
	l.snapshots = l.snapshots[:id]
	l.config.Logger.Debug("reverted to snapshot", "snapshot", id)
	return nil
}

// DiscardSnapshot closes a snapshot keeping its writes
func (l *Ledger) DiscardSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 0 || id >= len(l.snapshots) {
		return
	}
	l.snapshots = l.snapshots[:id]
	if len(l.snapshots) == 0 {
		l.journal = nil
	}
}
