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
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// State returns the current state of a proposal
func (g *Governor) State(id ProposalID) (State, error) {
	p, err := g.config.Store.Proposal(id)
	if err != nil {
		return 0, err
	}
	return g.stateOf(p, g.CurrentBlock())
}

// Tally returns the current vote totals of a proposal
func (g *Governor) Tally(id ProposalID) (Tally, error) {
	p, err := g.config.Store.Proposal(id)
	if err != nil {
		return Tally{}, err
	}
	return p.Tally, nil
}

// Deadline returns the block at which voting closes
func (g *Governor) Deadline(id ProposalID) (uint64, error) {
	p, err := g.config.Store.Proposal(id)
	if err != nil {
		return 0, err
	}
	return p.EndBlock, nil
}

// Snapshot returns the block voting power is measured at
func (g *Governor) Snapshot(id ProposalID) (uint64, error) {
	p, err := g.config.Store.Proposal(id)
	if err != nil {
		return 0, err
	}
	return p.SnapshotBlock, nil
}

func (g *Governor) VotingMode(id ProposalID) (VotingMode, error) {
	p, err := g.config.Store.Proposal(id)
	if err != nil {
		return 0, err
	}
	return p.Mode, nil
}

func (g *Governor) Proposal(id ProposalID) (*Proposal, error) {
	return g.config.Store.Proposal(id)
}

func (g *Governor) Proposals() ([]*Proposal, error) {
	return g.config.Store.Proposals()
}

// Receipt returns the vote receipt of voter, or nil if they did not vote
func (g *Governor) Receipt(id ProposalID, voter common.Address) (*Receipt, error) {
	if _, err := g.config.Store.Proposal(id); err != nil {
		return nil, err
	}
	return g.config.Store.Receipt(id, voter)
}

// Quorum returns the participation required for a proposal snapshotted
// at block
func (g *Governor) Quorum(block uint64) (*uint256.Int, error) {
	return g.quorum.Required(block)
}

func (g *Governor) Events(fromSeq uint64, limit int) ([]EventRecord, error) {
	return g.config.Store.Events(fromSeq, limit)
}
