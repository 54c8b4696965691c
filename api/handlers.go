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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/blinklabs-io/gavel/governance"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

const maxRequestBodySize = 1 << 20

var (
	errInvalidRequest = errors.New("invalid request")
	errInvalidID      = errors.New("invalid proposal id")
	errInvalidAddress = errors.New("invalid address")
)

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// writeGovernanceError maps a governance error to its status code and
// rejection kind
func (a *Api) writeGovernanceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, errInvalidID),
		errors.Is(err, errInvalidAddress),
		errors.Is(err, ErrInvalidPaginationParameters):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	case errors.Is(err, governance.ErrSequencerStopped):
		writeError(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
		return
	}
	reason := governance.Reason(err)
	var status int
	switch {
	case errors.Is(err, governance.ErrProposalNotFound):
		status = http.StatusNotFound
	case errors.Is(err, governance.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, governance.ErrInvalidSupport),
		errors.Is(err, governance.ErrInvalidVotingMode),
		errors.Is(err, governance.ErrInvalidVoteCount),
		errors.Is(err, governance.ErrVotingModeMismatch):
		status = http.StatusBadRequest
	case governance.IsRejection(err):
		status = http.StatusConflict
	default:
		a.logger.Error(
			"request failed",
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			reason,
			"internal error",
		)
		return
	}
	writeError(w, status, reason, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	return nil
}

func parseProposalID(r *http.Request) (governance.ProposalID, error) {
	raw := r.PathValue("id")
	idBytes, err := hexutil.Decode(raw)
	if err != nil || len(idBytes) != common.HashLength {
		return governance.ProposalID{}, fmt.Errorf("%w: %q", errInvalidID, raw)
	}
	return common.BytesToHash(idBytes), nil
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q", errInvalidAddress, raw)
	}
	return common.HexToAddress(raw), nil
}

// parseSupport accepts a support name or its numeric value
func parseSupport(raw string) (governance.Support, error) {
	switch strings.ToLower(raw) {
	case "against":
		return governance.SupportAgainst, nil
	case "for":
		return governance.SupportFor, nil
	case "abstain":
		return governance.SupportAbstain, nil
	}
	tmpSupport, err := strconv.ParseUint(raw, 10, 8)
	if err != nil || !governance.Support(tmpSupport).Valid() {
		return 0, fmt.Errorf("%w: %q", governance.ErrInvalidSupport, raw)
	}
	return governance.Support(tmpSupport), nil
}

func parseVotingMode(raw string) (governance.VotingMode, error) {
	switch strings.ToLower(raw) {
	case "", "standard":
		return governance.VotingModeStandard, nil
	case "quadratic":
		return governance.VotingModeQuadratic, nil
	default:
		return 0, fmt.Errorf("%w: %q", governance.ErrInvalidVotingMode, raw)
	}
}

func amountString(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Dec()
}

func proposalResponse(
	gov *governance.Governor,
	p *governance.Proposal,
) (ProposalResponse, error) {
	state, err := gov.State(p.ID)
	if err != nil {
		return ProposalResponse{}, err
	}
	ret := ProposalResponse{
		ID:              p.ID,
		Seq:             p.Seq,
		Proposer:        p.Proposer,
		Description:     p.Description,
		DescriptionHash: p.DescriptionHash,
		Actions:         governance.NewActionRecords(p.Actions),
		VotingMode:      p.Mode.String(),
		State:           state.String(),
		CreatedBlock:    p.CreatedBlock,
		SnapshotBlock:   p.SnapshotBlock,
		StartBlock:      p.StartBlock,
		EndBlock:        p.EndBlock,
		ForVotes:        p.Tally.For.Dec(),
		AgainstVotes:    p.Tally.Against.Dec(),
		AbstainVotes:    p.Tally.Abstain.Dec(),
	}
	// Supply at the snapshot is only known once the snapshot block is past
	if quorum, err := gov.Quorum(p.SnapshotBlock); err == nil {
		ret.Quorum = quorum.Dec()
	}
	if p.Queued {
		eta := p.ETA
		ret.Eta = &eta
	}
	return ret, nil
}

// handleHealth handles GET /health
func (a *Api) handleHealth(
	w http.ResponseWriter,
	r *http.Request,
) {
	var current uint64
	err := a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		current = gov.CurrentBlock()
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy:    true,
		CurrentBlock: current,
	})
}

// handleListProposals handles GET /v1/proposals
func (a *Api) handleListProposals(
	w http.ResponseWriter,
	r *http.Request,
) {
	params, err := ParsePagination(r)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var total int
	ret := []ProposalResponse{}
	err = a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		proposals, err := gov.Proposals()
		if err != nil {
			return err
		}
		if params.Order == PaginationOrderDesc {
			slices.Reverse(proposals)
		}
		total = len(proposals)
		start, end := params.Bounds(total)
		for _, p := range proposals[start:end] {
			resp, err := proposalResponse(gov, p)
			if err != nil {
				return err
			}
			ret = append(ret, resp)
		}
		return nil
	})
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	SetPaginationHeaders(w, total, params)
	writeJSON(w, http.StatusOK, ret)
}

// handleGetProposal handles GET /v1/proposals/{id}
func (a *Api) handleGetProposal(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := parseProposalID(r)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var ret ProposalResponse
	err = a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		p, err := gov.Proposal(id)
		if err != nil {
			return err
		}
		ret, err = proposalResponse(gov, p)
		return err
	})
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleGetReceipt handles GET /v1/proposals/{id}/receipts/{voter}
func (a *Api) handleGetReceipt(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := parseProposalID(r)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	voter, err := parseAddress(r.PathValue("voter"))
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var receipt *governance.Receipt
	err = a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		var err error
		receipt, err = gov.Receipt(id, voter)
		return err
	})
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	if receipt == nil {
		writeError(w, http.StatusNotFound, "NotFound", "no vote recorded for voter")
		return
	}
	writeJSON(w, http.StatusOK, ReceiptResponse{
		ProposalID: receipt.ProposalID,
		Voter:      receipt.Voter,
		Support:    receipt.Support.String(),
		Weight:     amountString(&receipt.Weight),
		Cost:       amountString(&receipt.Cost),
		Reason:     receipt.Reason,
	})
}

// handleEvents handles GET /v1/events
func (a *Api) handleEvents(
	w http.ResponseWriter,
	r *http.Request,
) {
	from, count, err := ParseEventRange(r)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var records []governance.EventRecord
	err = a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		var err error
		records, err = gov.Events(from, count)
		return err
	})
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	ret := make([]EventResponse, 0, len(records))
	for _, rec := range records {
		ret = append(ret, EventResponse{
			Seq:        rec.Seq,
			Block:      rec.Block,
			Type:       string(rec.Type),
			ProposalID: rec.ProposalID,
			Data:       rec.Data,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

// handlePropose handles POST /v1/proposals
func (a *Api) handlePropose(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req ProposeRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	mode, err := parseVotingMode(req.VotingMode)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	actions, err := governance.ActionsFromRecords(req.Actions)
	if err != nil {
		a.writeGovernanceError(w, fmt.Errorf("%w: %w", errInvalidRequest, err))
		return
	}
	var id governance.ProposalID
	err = a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		var err error
		id, err = gov.ProposeWithType(r.Context(), req.Proposer, actions, req.Description, mode)
		return err
	})
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProposeResponse{ID: id})
}

// handleCastVote handles POST /v1/proposals/{id}/votes
func (a *Api) handleCastVote(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := parseProposalID(r)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var req VoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	support, err := parseSupport(req.Support)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var weight *uint256.Int
	err = a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		mode, err := gov.VotingMode(id)
		if err != nil {
			return err
		}
		if mode != governance.VotingModeQuadratic && req.Count == 0 {
			weight, err = gov.CastVoteWithReason(r.Context(), req.Voter, id, support, req.Reason)
			return err
		}
		if req.Reason != "" {
			return fmt.Errorf("%w: reason is only accepted for standard votes", errInvalidRequest)
		}
		weight, err = gov.CastQuadraticVote(r.Context(), req.Voter, id, support, req.Count)
		return err
	})
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VoteResponse{Weight: amountString(weight)})
}

// handleQueue handles POST /v1/proposals/{id}/queue
func (a *Api) handleQueue(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := parseProposalID(r)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var req ActionsHashRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var eta uint64
	err = a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		var err error
		eta, err = gov.Queue(r.Context(), id, req.ActionsHash)
		return err
	})
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueueResponse{Eta: eta})
}

// handleExecute handles POST /v1/proposals/{id}/execute
func (a *Api) handleExecute(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := parseProposalID(r)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var req ActionsHashRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	err = a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		return gov.Execute(r.Context(), id, req.ActionsHash)
	})
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: governance.StateExecuted.String()})
}

// handleCancel handles POST /v1/proposals/{id}/cancel
func (a *Api) handleCancel(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := parseProposalID(r)
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	var req CancelRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	err = a.sequencer.Do(r.Context(), func(gov *governance.Governor) error {
		return gov.Cancel(r.Context(), req.Caller, id)
	})
	if err != nil {
		a.writeGovernanceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: governance.StateCanceled.String()})
}
