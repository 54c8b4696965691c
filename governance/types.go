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
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ProposalID is the keccak256 hash identifying a proposal
type ProposalID = common.Hash

// State of a proposal. The numeric values are part of the external
// interface.
type State uint8

const (
	StatePending State = iota
	StateActive
	StateCanceled
	StateDefeated
	StateSucceeded
	StateQueued
	StateExpired
	StateExecuted
)

var stateNames = [...]string{
	"Pending",
	"Active",
	"Canceled",
	"Defeated",
	"Succeeded",
	"Queued",
	"Expired",
	"Executed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	switch s {
	case StateCanceled, StateDefeated, StateExpired, StateExecuted:
		return true
	default:
		return false
	}
}

type Support uint8

const (
	SupportAgainst Support = iota
	SupportFor
	SupportAbstain
)

func (s Support) Valid() bool {
	return s <= SupportAbstain
}

func (s Support) String() string {
	switch s {
	case SupportAgainst:
		return "Against"
	case SupportFor:
		return "For"
	case SupportAbstain:
		return "Abstain"
	default:
		return fmt.Sprintf("Support(%d)", s)
	}
}

type VotingMode uint8

const (
	VotingModeStandard VotingMode = iota
	VotingModeQuadratic
)

func (m VotingMode) Valid() bool {
	return m <= VotingModeQuadratic
}

func (m VotingMode) String() string {
	switch m {
	case VotingModeStandard:
		return "Standard"
	case VotingModeQuadratic:
		return "Quadratic"
	default:
		return fmt.Sprintf("VotingMode(%d)", m)
	}
}

// Action is a single call made when a proposal executes
type Action struct {
	Target  common.Address
	Value   *uint256.Int
	Payload []byte
}

func (a Action) clone() Action {
	ret := Action{
		Target:  a.Target,
		Payload: slices.Clone(a.Payload),
	}
	if a.Value != nil {
		ret.Value = a.Value.Clone()
	}
	return ret
}

// Tally holds the accumulated vote weight per support bucket
type Tally struct {
	For     uint256.Int
	Against uint256.Int
	Abstain uint256.Int
}

// Add credits weight to exactly one bucket
func (t *Tally) Add(support Support, weight *uint256.Int) error {
	switch support {
	case SupportFor:
		t.For.Add(&t.For, weight)
	case SupportAgainst:
		t.Against.Add(&t.Against, weight)
	case SupportAbstain:
		t.Abstain.Add(&t.Abstain, weight)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidSupport, support)
	}
	return nil
}

// Participation returns the weight counted toward quorum
func (t *Tally) Participation() *uint256.Int {
	return new(uint256.Int).Add(&t.For, &t.Abstain)
}

// VoteSucceeded reports a strict majority of for over against
func (t *Tally) VoteSucceeded() bool {
	return t.For.Gt(&t.Against)
}

// Proposal is the stored record of a governance proposal
type Proposal struct {
	ID              ProposalID
	Seq             uint64
	Proposer        common.Address
	Description     string
	DescriptionHash common.Hash
	Actions         []Action
	Mode            VotingMode
	CreatedBlock    uint64
	SnapshotBlock   uint64
	StartBlock      uint64
	EndBlock        uint64
	Tally           Tally
	Queued          bool
	ETA             uint64
	Executed        bool
	Canceled        bool
}

// Clone returns a deep copy
func (p *Proposal) Clone() *Proposal {
	ret := *p
	ret.Actions = make([]Action, len(p.Actions))
	for i, action := range p.Actions {
		ret.Actions[i] = action.clone()
	}
	return &ret
}

// Receipt records a single voter's participation in a proposal
type Receipt struct {
	ProposalID ProposalID
	Voter      common.Address
	Support    Support
	Weight     uint256.Int
	Cost       uint256.Int
	Reason     string
}

// Params is the immutable governance configuration
type Params struct {
	// Blocks between creation and the start of voting
	VotingDelay uint64
	// Length of the voting window in blocks
	VotingPeriod uint64
	// Minimum votes a proposer needs at the block before creation
	ProposalThreshold *uint256.Int
	// Percentage of the snapshot total supply required to participate
	QuorumPercent uint64
	// Blocks between queue and execute, 0 disables queueing
	TimelockDelay uint64
	// Blocks a successful proposal stays executable, 0 never expires
	GracePeriod uint64
	// Weight credited per quadratic vote
	QuadraticUnit *uint256.Int
	// Account allowed to cancel any proposal
	Admin common.Address
	// Account executing proposal actions
	GovernorAddress common.Address
}

func DefaultParams() Params {
	return Params{
		VotingDelay:       1,
		VotingPeriod:      20,
		ProposalThreshold: uint256.NewInt(100),
		QuorumPercent:     4,
		QuadraticUnit:     uint256.NewInt(1),
	}
}

var (
	errInvalidVotingPeriod  = errors.New("voting period must be at least one block")
	errInvalidQuorumPercent = errors.New("quorum percent must be at most 100")
	errInvalidQuadraticUnit = errors.New("quadratic unit must be positive")
)

func (p Params) Validate() error {
	if p.VotingPeriod == 0 {
		return errInvalidVotingPeriod
	}
	if p.QuorumPercent > 100 {
		return errInvalidQuorumPercent
	}
	if p.QuadraticUnit == nil || p.QuadraticUnit.IsZero() {
		return errInvalidQuadraticUnit
	}
	return nil
}

func (p Params) threshold() *uint256.Int {
	if p.ProposalThreshold == nil {
		return new(uint256.Int)
	}
	return p.ProposalThreshold
}
