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

package api

import (
	"github.com/blinklabs-io/gavel/governance"
	"github.com/ethereum/go-ethereum/common"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	IsHealthy    bool   `json:"is_healthy"`
	CurrentBlock uint64 `json:"current_block"`
}

// ProposalResponse represents a proposal with its derived state.
type ProposalResponse struct {
	ID              governance.ProposalID     `json:"id"`
	Seq             uint64                    `json:"seq"`
	Proposer        common.Address            `json:"proposer"`
	Description     string                    `json:"description"`
	DescriptionHash common.Hash               `json:"description_hash"`
	Actions         []governance.ActionRecord `json:"actions"`
	VotingMode      string                    `json:"voting_mode"`
	State           string                    `json:"state"`
	CreatedBlock    uint64                    `json:"created_block"`
	SnapshotBlock   uint64                    `json:"snapshot_block"`
	StartBlock      uint64                    `json:"start_block"`
	EndBlock        uint64                    `json:"end_block"`
	ForVotes        string                    `json:"for_votes"`
	AgainstVotes    string                    `json:"against_votes"`
	AbstainVotes    string                    `json:"abstain_votes"`
	Quorum          string                    `json:"quorum"`
	Eta             *uint64                   `json:"eta"`
}

// ReceiptResponse represents a single voter's receipt.
type ReceiptResponse struct {
	ProposalID governance.ProposalID `json:"proposal_id"`
	Voter      common.Address        `json:"voter"`
	Support    string                `json:"support"`
	Weight     string                `json:"weight"`
	Cost       string                `json:"cost"`
	Reason     string                `json:"reason"`
}

// EventResponse represents an entry of the governance event log.
type EventResponse struct {
	Seq        uint64                `json:"seq"`
	Block      uint64                `json:"block"`
	Type       string                `json:"type"`
	ProposalID governance.ProposalID `json:"proposal_id"`
	Data       any                   `json:"data"`
}

// ProposeRequest is the body of POST /v1/proposals.
type ProposeRequest struct {
	Proposer    common.Address            `json:"proposer"`
	Actions     []governance.ActionRecord `json:"actions"`
	Description string                    `json:"description"`
	VotingMode  string                    `json:"voting_mode"`
}

// ProposeResponse is returned by POST /v1/proposals.
type ProposeResponse struct {
	ID governance.ProposalID `json:"id"`
}

// VoteRequest is the body of POST /v1/proposals/{id}/votes. Votes on a
// quadratic proposal spend count credits and must not carry a reason.
// Reason is only recorded for standard votes.
type VoteRequest struct {
	Voter   common.Address `json:"voter"`
	Support string         `json:"support"`
	Count   uint64         `json:"count"`
	Reason  string         `json:"reason"`
}

// VoteResponse is returned by POST /v1/proposals/{id}/votes.
type VoteResponse struct {
	Weight string `json:"weight"`
}

// ActionsHashRequest is the body of the queue and execute endpoints.
type ActionsHashRequest struct {
	ActionsHash common.Hash `json:"actions_hash"`
}

// QueueResponse is returned by POST /v1/proposals/{id}/queue.
type QueueResponse struct {
	Eta uint64 `json:"eta"`
}

// CancelRequest is the body of POST /v1/proposals/{id}/cancel.
type CancelRequest struct {
	Caller common.Address `json:"caller"`
}

// StateResponse is returned by write endpoints that do not produce a value.
type StateResponse struct {
	State string `json:"state"`
}

// ErrorResponse represents an error response. Error carries the rejection
// kind.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}
