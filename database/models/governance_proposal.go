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

package models

import "github.com/blinklabs-io/gavel/database/types"

// GovernanceProposal is a stored proposal. The primary key doubles as the
// creation sequence number.
type GovernanceProposal struct {
	ID              uint             `gorm:"primarykey"`
	ProposalID      []byte           `gorm:"uniqueIndex;size:32;not null"`
	Proposer        []byte           `gorm:"index;size:20;not null"`
	Description     string           `gorm:"not null"`
	DescriptionHash []byte           `gorm:"size:32;not null"`
	Actions         []ProposalAction `gorm:"serializer:json"`
	VotingMode      uint8            `gorm:"not null"` // 0=Standard, 1=Quadratic
	CreatedBlock    uint64           `gorm:"index;not null"`
	SnapshotBlock   uint64           `gorm:"not null"`
	StartBlock      uint64           `gorm:"not null"`
	EndBlock        uint64           `gorm:"index;not null"`
	ForVotes        types.Uint256    `gorm:"not null"`
	AgainstVotes    types.Uint256    `gorm:"not null"`
	AbstainVotes    types.Uint256    `gorm:"not null"`
	Queued          bool             `gorm:"not null"`
	Eta             uint64
	Executed        bool `gorm:"index;not null"`
	Canceled        bool `gorm:"not null"`
}

// ProposalAction is a single call of a proposal, stored as JSON
type ProposalAction struct {
	Target  []byte `json:"target"`
	Value   string `json:"value"`
	Payload []byte `json:"payload"`
}

// TableName returns the table name
func (GovernanceProposal) TableName() string {
	return "governance_proposal"
}
