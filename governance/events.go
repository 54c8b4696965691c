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
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/gavel/event"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

const (
	ProposalCreatedEventType  event.EventType = "governance.proposal_created"
	VoteCastEventType         event.EventType = "governance.vote_cast"
	ProposalQueuedEventType   event.EventType = "governance.proposal_queued"
	ProposalExecutedEventType event.EventType = "governance.proposal_executed"
	ProposalCanceledEventType event.EventType = "governance.proposal_canceled"
)

// ActionRecord is the serialized form of an Action
type ActionRecord struct {
	Target  common.Address `json:"target"`
	Value   string         `json:"value"`
	Payload hexutil.Bytes  `json:"payload"`
}

func NewActionRecords(actions []Action) []ActionRecord {
	ret := make([]ActionRecord, 0, len(actions))
	for _, action := range actions {
		value := "0"
		if action.Value != nil {
			value = action.Value.Dec()
		}
		ret = append(
			ret,
			ActionRecord{
				Target:  action.Target,
				Value:   value,
				Payload: hexutil.Bytes(action.Payload),
			},
		)
	}
	return ret
}

func (r ActionRecord) Action() (Action, error) {
	ret := Action{
		Target:  r.Target,
		Value:   new(uint256.Int),
		Payload: []byte(r.Payload),
	}
	if r.Value != "" {
		value, err := uint256.FromDecimal(r.Value)
		if err != nil {
			return Action{}, fmt.Errorf("action value %q: %w", r.Value, err)
		}
		ret.Value = value
	}
	return ret, nil
}

// ActionsFromRecords decodes a list of serialized actions
func ActionsFromRecords(records []ActionRecord) ([]Action, error) {
	ret := make([]Action, 0, len(records))
	for i, record := range records {
		action, err := record.Action()
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		ret = append(ret, action)
	}
	return ret, nil
}

type ProposalCreatedEvent struct {
	ProposalID    ProposalID     `json:"proposal_id"`
	Proposer      common.Address `json:"proposer"`
	Actions       []ActionRecord `json:"actions"`
	SnapshotBlock uint64         `json:"snapshot_block"`
	StartBlock    uint64         `json:"start_block"`
	EndBlock      uint64         `json:"end_block"`
	Description   string         `json:"description"`
	Mode          VotingMode     `json:"voting_mode"`
}

type VoteCastEvent struct {
	Voter      common.Address `json:"voter"`
	ProposalID ProposalID     `json:"proposal_id"`
	Support    Support        `json:"support"`
	Weight     string         `json:"weight"`
	Cost       string         `json:"cost"`
	Reason     string         `json:"reason"`
	Mode       VotingMode     `json:"voting_mode"`
}

type ProposalQueuedEvent struct {
	ProposalID ProposalID `json:"proposal_id"`
	ETA        uint64     `json:"eta"`
}

type ProposalExecutedEvent struct {
	ProposalID ProposalID `json:"proposal_id"`
}

type ProposalCanceledEvent struct {
	ProposalID ProposalID `json:"proposal_id"`
}

// EventRecord is an entry of the append-only governance event log. Seq is
// assigned by the store on commit.
type EventRecord struct {
	Seq        uint64
	Block      uint64
	Type       event.EventType
	ProposalID ProposalID
	Data       json.RawMessage
}

func newEventRecord(
	block uint64,
	eventType event.EventType,
	id ProposalID,
	payload any,
) (*EventRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return &EventRecord{
		Block:      block,
		Type:       eventType,
		ProposalID: id,
		Data:       data,
	}, nil
}

// GovernanceEvent is published on the event bus after the record is
// durable
type GovernanceEvent struct {
	Record  EventRecord
	Payload any
}
