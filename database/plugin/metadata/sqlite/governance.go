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

package sqlite

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/gavel/database/models"
	"github.com/blinklabs-io/gavel/database/types"
	"github.com/blinklabs-io/gavel/event"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
)

// Proposal returns the proposal with the given id
func (d *MetadataStoreSqlite) Proposal(id governance.ProposalID) (*governance.Proposal, error) {
	var tmpProposal models.GovernanceProposal
	result := d.DB().Where("proposal_id = ?", id.Bytes()).First(&tmpProposal)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", governance.ErrProposalNotFound, id.Hex())
		}
		return nil, result.Error
	}
	return proposalFromModel(&tmpProposal)
}

// Proposals returns all proposals in creation order
func (d *MetadataStoreSqlite) Proposals() ([]*governance.Proposal, error) {
	var tmpProposals []models.GovernanceProposal
	if result := d.DB().Order("id asc").Find(&tmpProposals); result.Error != nil {
		return nil, result.Error
	}
	ret := make([]*governance.Proposal, 0, len(tmpProposals))
	for i := range tmpProposals {
		p, err := proposalFromModel(&tmpProposals[i])
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// Receipt returns the vote receipt for voter, or nil if none exists
func (d *MetadataStoreSqlite) Receipt(
	id governance.ProposalID,
	voter common.Address,
) (*governance.Receipt, error) {
	var tmpVote models.GovernanceVote
	result := d.DB().
		Where("proposal_id = ? AND voter = ?", id.Bytes(), voter.Bytes()).
		First(&tmpVote)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	ret := &governance.Receipt{
		ProposalID: common.BytesToHash(tmpVote.ProposalID),
		Voter:      common.BytesToAddress(tmpVote.Voter),
		Support:    governance.Support(tmpVote.Vote),
		Reason:     tmpVote.Reason,
	}
	ret.Weight.Set(&tmpVote.Weight.Int)
	ret.Cost.Set(&tmpVote.Cost.Int)
	return ret, nil
}

// Events returns event log records starting at fromSeq
func (d *MetadataStoreSqlite) Events(
	fromSeq uint64,
	limit int,
) ([]governance.EventRecord, error) {
	var tmpEvents []models.GovernanceEvent
	query := d.DB().Where("id >= ?", fromSeq).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&tmpEvents); result.Error != nil {
		return nil, result.Error
	}
	ret := make([]governance.EventRecord, 0, len(tmpEvents))
	for _, tmpEvent := range tmpEvents {
		ret = append(
			ret,
			governance.EventRecord{
				Seq:        uint64(tmpEvent.ID),
				Block:      tmpEvent.Block,
				Type:       event.EventType(tmpEvent.Type),
				ProposalID: common.BytesToHash(tmpEvent.ProposalID),
				Data:       tmpEvent.Data,
			},
		)
	}
	return ret, nil
}

// Commit writes a governance batch in a single database transaction
func (d *MetadataStoreSqlite) Commit(batch *governance.Batch) error {
	proposalSeqs := make([]uint64, len(batch.Proposals))
	eventSeqs := make([]uint64, len(batch.Events))
	err := d.DB().Transaction(func(txn *gorm.DB) error {
		for i, p := range batch.Proposals {
			tmpProposal := proposalToModel(p)
			if p.Seq == 0 {
				var count int64
				result := txn.Model(&models.GovernanceProposal{}).
					Where("proposal_id = ?", p.ID.Bytes()).
					Count(&count)
				if result.Error != nil {
					return result.Error
				}
				if count > 0 {
					return fmt.Errorf("%w: %s", governance.ErrProposalExists, p.ID.Hex())
				}
				if result := txn.Create(tmpProposal); result.Error != nil {
					return result.Error
				}
			} else if result := txn.Save(tmpProposal); result.Error != nil {
				return result.Error
			}
			proposalSeqs[i] = uint64(tmpProposal.ID)
		}
		for _, r := range batch.Receipts {
			tmpVote := &models.GovernanceVote{
				ProposalID: r.ProposalID.Bytes(),
				Voter:      r.Voter.Bytes(),
				Vote:       uint8(r.Support),
				Weight:     types.NewUint256(&r.Weight),
				Cost:       types.NewUint256(&r.Cost),
				Reason:     r.Reason,
			}
			if result := txn.Create(tmpVote); result.Error != nil {
				return result.Error
			}
		}
		for i, rec := range batch.Events {
			tmpEvent := &models.GovernanceEvent{
				Block:      rec.Block,
				Type:       string(rec.Type),
				ProposalID: rec.ProposalID.Bytes(),
				Data:       rec.Data,
			}
			if result := txn.Create(tmpEvent); result.Error != nil {
				return result.Error
			}
			eventSeqs[i] = uint64(tmpEvent.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, p := range batch.Proposals {
		p.Seq = proposalSeqs[i]
	}
	for i, rec := range batch.Events {
		rec.Seq = eventSeqs[i]
	}
	return nil
}

func proposalToModel(p *governance.Proposal) *models.GovernanceProposal {
	ret := &models.GovernanceProposal{
		ID:              uint(p.Seq),
		ProposalID:      p.ID.Bytes(),
		Proposer:        p.Proposer.Bytes(),
		Description:     p.Description,
		DescriptionHash: p.DescriptionHash.Bytes(),
		Actions:         make([]models.ProposalAction, 0, len(p.Actions)),
		VotingMode:      uint8(p.Mode),
		CreatedBlock:    p.CreatedBlock,
		SnapshotBlock:   p.SnapshotBlock,
		StartBlock:      p.StartBlock,
		EndBlock:        p.EndBlock,
		ForVotes:        types.NewUint256(&p.Tally.For),
		AgainstVotes:    types.NewUint256(&p.Tally.Against),
		AbstainVotes:    types.NewUint256(&p.Tally.Abstain),
		Queued:          p.Queued,
		Eta:             p.ETA,
		Executed:        p.Executed,
		Canceled:        p.Canceled,
	}
	for _, action := range p.Actions {
		value := "0"
		if action.Value != nil {
			value = action.Value.Dec()
		}
		ret.Actions = append(
			ret.Actions,
			models.ProposalAction{
				Target:  action.Target.Bytes(),
				Value:   value,
				Payload: action.Payload,
			},
		)
	}
	return ret
}

func proposalFromModel(m *models.GovernanceProposal) (*governance.Proposal, error) {
	ret := &governance.Proposal{
		ID:              common.BytesToHash(m.ProposalID),
		Seq:             uint64(m.ID),
		Proposer:        common.BytesToAddress(m.Proposer),
		Description:     m.Description,
		DescriptionHash: common.BytesToHash(m.DescriptionHash),
		Actions:         make([]governance.Action, 0, len(m.Actions)),
		Mode:            governance.VotingMode(m.VotingMode),
		CreatedBlock:    m.CreatedBlock,
		SnapshotBlock:   m.SnapshotBlock,
		StartBlock:      m.StartBlock,
		EndBlock:        m.EndBlock,
		Queued:          m.Queued,
		ETA:             m.Eta,
		Executed:        m.Executed,
		Canceled:        m.Canceled,
	}
	ret.Tally.For.Set(&m.ForVotes.Int)
	ret.Tally.Against.Set(&m.AgainstVotes.Int)
	ret.Tally.Abstain.Set(&m.AbstainVotes.Int)
	for i, action := range m.Actions {
		value, err := uint256.FromDecimal(action.Value)
		if err != nil {
			return nil, fmt.Errorf("proposal %x action %d value: %w", m.ProposalID, i, err)
		}
		ret.Actions = append(
			ret.Actions,
			governance.Action{
				Target:  common.BytesToAddress(action.Target),
				Value:   value,
				Payload: action.Payload,
			},
		)
	}
	return ret, nil
}
