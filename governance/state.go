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

import "github.com/holiman/uint256"

// DeriveState computes the state of p at block current. The required quorum
// is only resolved once voting has closed.
func DeriveState(
	p *Proposal,
	current uint64,
	params Params,
	requiredQuorum func() (*uint256.Int, error),
) (State, error) {
	if p.Executed {
		return StateExecuted, nil
	}
	if p.Canceled {
		return StateCanceled, nil
	}
	if current < p.StartBlock {
		return StatePending, nil
	}
	if current < p.EndBlock {
		return StateActive, nil
	}
	required, err := requiredQuorum()
	if err != nil {
		return 0, err
	}
	if !QuorumReached(&p.Tally, required) || !p.Tally.VoteSucceeded() {
		return StateDefeated, nil
	}
	if p.Queued {
		if params.GracePeriod > 0 && current >= p.ETA+params.GracePeriod {
			return StateExpired, nil
		}
		return StateQueued, nil
	}
	if params.GracePeriod > 0 && current >= p.EndBlock+params.GracePeriod {
		return StateExpired, nil
	}
	return StateSucceeded, nil
}
