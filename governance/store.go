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

package governance

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Batch is the set of writes produced by a single engine call. A Store
// applies it entirely or not at all.
type Batch struct {
	Proposals []*Proposal
	Receipts  []*Receipt
	Events    []*EventRecord
}

// Store persists proposals, receipts and the event log
type Store interface {
	// Proposal returns ErrProposalNotFound for an unknown id
	Proposal(id ProposalID) (*Proposal, error)
	// Proposals returns every proposal ordered by Seq
	Proposals() ([]*Proposal, error)
	// Receipt returns nil when voter has not voted on the proposal
	Receipt(id ProposalID, voter common.Address) (*Receipt, error)
	// Events returns up to limit records with Seq >= fromSeq. A limit of
	// zero returns all of them.
	Events(fromSeq uint64, limit int) ([]EventRecord, error)
	// Commit applies the batch atomically. New proposals and event records
	// get their Seq assigned.
	Commit(batch *Batch) error
}

type receiptKey struct {
	id    ProposalID
	voter common.Address
}

// MemoryStore keeps governance state in memory
type MemoryStore struct {
	mu        sync.RWMutex
	proposals map[ProposalID]*Proposal
	receipts  map[receiptKey]*Receipt
	events    []EventRecord
	lastSeq   uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[ProposalID]*Proposal),
		receipts:  make(map[receiptKey]*Receipt),
	}
}

func (m *MemoryStore) Proposal(id ProposalID) (*Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProposalNotFound, id.Hex())
	}
	return p.Clone(), nil
}

func (m *MemoryStore) Proposals() ([]*Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make([]*Proposal, 0, len(m.proposals))
	for _, p := range m.proposals {
		ret = append(ret, p.Clone())
	}
	slices.SortFunc(ret, func(a, b *Proposal) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return ret, nil
}

func (m *MemoryStore) Receipt(id ProposalID, voter common.Address) (*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receipts[receiptKey{id: id, voter: voter}]
	if !ok {
		return nil, nil
	}
	tmpReceipt := *r
	return &tmpReceipt, nil
}

func (m *MemoryStore) Events(fromSeq uint64, limit int) ([]EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Seq values are contiguous starting at 1
	start := 0
	if fromSeq > 1 {
		start = int(min(fromSeq-1, uint64(len(m.events))))
	}
	end := len(m.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	ret := make([]EventRecord, 0, end-start)
	for _, rec := range m.events[start:end] {
		rec.Data = bytes.Clone(rec.Data)
		ret = append(ret, rec)
	}
	return ret, nil
}

func (m *MemoryStore) Commit(batch *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range batch.Proposals {
		if _, ok := m.proposals[p.ID]; ok && p.Seq == 0 {
			return fmt.Errorf("%w: %s", ErrProposalExists, p.ID.Hex())
		}
	}
	for _, p := range batch.Proposals {
		if p.Seq == 0 {
			p.Seq = uint64(len(m.proposals)) + 1
		}
		m.proposals[p.ID] = p.Clone()
	}
	for _, r := range batch.Receipts {
		tmpReceipt := *r
		m.receipts[receiptKey{id: r.ProposalID, voter: r.Voter}] = &tmpReceipt
	}
	for _, rec := range batch.Events {
		m.lastSeq++
		rec.Seq = m.lastSeq
		tmpRec := *rec
		tmpRec.Data = bytes.Clone(rec.Data)
		m.events = append(m.events, tmpRec)
	}
	return nil
}
