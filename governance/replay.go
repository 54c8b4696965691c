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

	"github.com/holiman/uint256"
)

// ReplayTallies rebuilds every proposal tally from event records alone
func ReplayTallies(records []EventRecord) (map[ProposalID]Tally, error) {
	ret := make(map[ProposalID]Tally)
	for _, rec := range records {
		switch rec.Type {
		case ProposalCreatedEventType:
			if _, ok := ret[rec.ProposalID]; !ok {
				ret[rec.ProposalID] = Tally{}
			}
		case VoteCastEventType:
			var vote VoteCastEvent
			if err := json.Unmarshal(rec.Data, &vote); err != nil {
				return nil, fmt.Errorf("decode event %d: %w", rec.Seq, err)
			}
			weight, err := uint256.FromDecimal(vote.Weight)
			if err != nil {
				return nil, fmt.Errorf("event %d weight: %w", rec.Seq, err)
			}
			tally := ret[vote.ProposalID]
			if err := tally.Add(vote.Support, weight); err != nil {
				return nil, fmt.Errorf("event %d: %w", rec.Seq, err)
			}
			ret[vote.ProposalID] = tally
		}
	}
	return ret, nil
}
