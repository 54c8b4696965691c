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

import "errors"

var (
	ErrBelowThreshold        = errors.New("proposer votes below proposal threshold")
	ErrAlreadyVoted          = errors.New("vote already cast")
	ErrVotingClosed          = errors.New("vote not currently active")
	ErrInsufficientPower     = errors.New("insufficient voting power")
	ErrNotSucceeded          = errors.New("proposal not successful")
	ErrHashMismatch          = errors.New("actions hash does not match proposal")
	ErrAlreadyExecuted       = errors.New("proposal already executed")
	ErrInvalidVoteCount      = errors.New("vote count must be at least one")
	ErrProposalNotFound      = errors.New("unknown proposal id")
	ErrProposalExists        = errors.New("proposal already exists")
	ErrInvalidSupport        = errors.New("invalid value for enum VoteType")
	ErrInvalidVotingMode     = errors.New("invalid voting mode")
	ErrVotingModeMismatch    = errors.New("vote does not match proposal voting mode")
	ErrNotCancelable         = errors.New("proposal cannot be canceled")
	ErrUnauthorized          = errors.New("caller is not allowed")
	ErrTimelockNotConfigured = errors.New("timelock not configured")
	ErrActionFailed          = errors.New("proposal action failed")
	ErrUnknownTarget         = errors.New("no target registered for address")
)

var errorReasons = []struct {
	err    error
	reason string
}{
	{ErrBelowThreshold, "BelowThreshold"},
	{ErrAlreadyVoted, "AlreadyVoted"},
	{ErrVotingClosed, "VotingClosed"},
	{ErrInsufficientPower, "InsufficientPower"},
	{ErrNotSucceeded, "NotSucceeded"},
	{ErrHashMismatch, "HashMismatch"},
	{ErrAlreadyExecuted, "AlreadyExecuted"},
	{ErrInvalidVoteCount, "InvalidVoteCount"},
	{ErrProposalNotFound, "ProposalNotFound"},
	{ErrProposalExists, "ProposalExists"},
	{ErrInvalidSupport, "InvalidSupport"},
	{ErrInvalidVotingMode, "InvalidVotingMode"},
	{ErrVotingModeMismatch, "VotingModeMismatch"},
	{ErrNotCancelable, "NotCancelable"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrTimelockNotConfigured, "TimelockNotConfigured"},
	{ErrActionFailed, "ActionFailed"},
}

// Reason returns the short rejection kind for err, or "Internal" for
// errors outside the governance taxonomy
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, tmpReason := range errorReasons {
		if errors.Is(err, tmpReason.err) {
			return tmpReason.reason
		}
	}
	return "Internal"
}

// IsRejection reports whether err is a governance rule rejection rather
// than an infrastructure failure
func IsRejection(err error) bool {
	return Reason(err) != "Internal" && err != nil
}
