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

package governance_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/blinklabs-io/gavel/governance"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func noQuorum() (*uint256.Int, error) {
	return new(uint256.Int), nil
}

func TestProposalBlockPositions(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("snapshot <= start < end", prop.ForAll(
		func(current, delay, period uint64) bool {
			params := governance.DefaultParams()
			params.ProposalThreshold = new(uint256.Int)
			params.VotingDelay = delay
			params.VotingPeriod = period
			gov, err := governance.NewGovernor(governance.GovernorConfig{
				Store:       governance.NewMemoryStore(),
				PowerSource: &fixedPowerSource{current: current, power: uint256.NewInt(1)},
				Params:      params,
			})
			if err != nil {
				return false
			}
			id, err := gov.Propose(context.Background(), deployer, nil, "positions")
			if err != nil {
				return false
			}
			p, err := gov.Proposal(id)
			if err != nil {
				return false
			}
			return p.SnapshotBlock <= p.StartBlock &&
				p.StartBlock < p.EndBlock &&
				p.StartBlock == current+delay &&
				p.EndBlock == p.StartBlock+period
		},
		gen.UInt64Range(0, 1<<32),
		gen.UInt64Range(0, 1<<16),
		gen.UInt64Range(1, 1<<16),
	))

	properties.TestingRun(t)
}

func TestDeriveStateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)
	params := governance.DefaultParams()

	properties.Property("executed is terminal", prop.ForAll(
		func(start, length, current uint64, canceled bool) bool {
			p := &governance.Proposal{
				StartBlock: start,
				EndBlock:   start + length,
				Executed:   true,
				Canceled:   canceled,
			}
			state, err := governance.DeriveState(p, current, params, noQuorum)
			return err == nil && state == governance.StateExecuted
		},
		gen.UInt64Range(0, 1000),
		gen.UInt64Range(1, 1000),
		gen.UInt64Range(0, 3000),
		gen.Bool(),
	))

	properties.Property("canceled is terminal", prop.ForAll(
		func(start, length, current uint64) bool {
			p := &governance.Proposal{
				StartBlock: start,
				EndBlock:   start + length,
				Canceled:   true,
			}
			state, err := governance.DeriveState(p, current, params, noQuorum)
			return err == nil && state == governance.StateCanceled
		},
		gen.UInt64Range(0, 1000),
		gen.UInt64Range(1, 1000),
		gen.UInt64Range(0, 3000),
	))

	properties.Property("voting window", prop.ForAll(
		func(start, length, current uint64) bool {
			p := &governance.Proposal{
				StartBlock: start,
				EndBlock:   start + length,
			}
			state, err := governance.DeriveState(p, current, params, noQuorum)
			if err != nil {
				return false
			}
			switch {
			case current < p.StartBlock:
				return state == governance.StatePending
			case current < p.EndBlock:
				return state == governance.StateActive
			default:
				// An empty tally never beats against
				return state == governance.StateDefeated
			}
		},
		gen.UInt64Range(0, 1000),
		gen.UInt64Range(1, 1000),
		gen.UInt64Range(0, 3000),
	))

	properties.Property("succeeded needs quorum and majority", prop.ForAll(
		func(forVotes, against, abstain, required uint64) bool {
			p := &governance.Proposal{StartBlock: 1, EndBlock: 2}
			p.Tally.For.SetUint64(forVotes)
			p.Tally.Against.SetUint64(against)
			p.Tally.Abstain.SetUint64(abstain)
			state, err := governance.DeriveState(
				p,
				10,
				params,
				func() (*uint256.Int, error) {
					return uint256.NewInt(required), nil
				},
			)
			if err != nil {
				return false
			}
			passed := forVotes+abstain >= required && forVotes > against
			return passed == (state == governance.StateSucceeded)
		},
		gen.UInt64Range(0, 1<<40),
		gen.UInt64Range(0, 1<<40),
		gen.UInt64Range(0, 1<<40),
		gen.UInt64Range(0, 1<<41),
	))

	properties.TestingRun(t)
}

func TestQuadraticCostProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("cost is count squared units", prop.ForAll(
		func(count, unit uint64) bool {
			weight, cost, overflow := governance.QuadraticCost(count, uint256.NewInt(unit))
			if overflow {
				return false
			}
			expectedWeight := new(big.Int).Mul(new(big.Int).SetUint64(count), new(big.Int).SetUint64(unit))
			expectedCost := new(big.Int).Mul(expectedWeight, new(big.Int).SetUint64(count))
			return weight.ToBig().Cmp(expectedWeight) == 0 &&
				cost.ToBig().Cmp(expectedCost) == 0 &&
				!cost.Lt(weight)
		},
		gen.UInt64Range(1, 1<<32),
		gen.UInt64Range(1, 1<<62),
	))

	properties.Property("overflow is reported", prop.ForAll(
		func(count uint64) bool {
			unit := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
			_, _, overflow := governance.QuadraticCost(count, unit)
			return overflow
		},
		gen.UInt64Range(1<<28, 1<<63),
	))

	properties.TestingRun(t)
}

func TestRequiredQuorumProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("truncating percentage of supply", prop.ForAll(
		func(supply, percent uint64) bool {
			required := governance.RequiredQuorum(uint256.NewInt(supply), percent)
			expected := new(big.Int).Mul(new(big.Int).SetUint64(supply), new(big.Int).SetUint64(percent))
			expected.Div(expected, big.NewInt(100))
			return required.ToBig().Cmp(expected) == 0 &&
				!required.Gt(uint256.NewInt(supply))
		},
		gen.UInt64(),
		gen.UInt64Range(0, 100),
	))

	properties.TestingRun(t)
}

func TestTallyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("each vote lands in one bucket", prop.ForAll(
		func(supports []uint8, weights []uint32) bool {
			var tally governance.Tally
			total := new(uint256.Int)
			for i := 0; i < len(supports) && i < len(weights); i++ {
				weight := uint256.NewInt(uint64(weights[i]))
				if err := tally.Add(governance.Support(supports[i]), weight); err != nil {
					return false
				}
				total.Add(total, weight)
			}
			sum := new(uint256.Int).Add(&tally.For, &tally.Against)
			sum.Add(sum, &tally.Abstain)
			return sum.Eq(total)
		},
		gen.SliceOf(gen.UInt8Range(0, 2)),
		gen.SliceOf(gen.UInt32()),
	))

	properties.TestingRun(t)
}

func TestDeterministicReplay(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	run := func(voters []uint8, supports []uint8) ([]governance.EventRecord, governance.Tally, bool) {
		source := &fixedPowerSource{current: 5, power: uint256.NewInt(1000)}
		params := governance.DefaultParams()
		params.VotingDelay = 0
		gov, err := governance.NewGovernor(governance.GovernorConfig{
			Store:       governance.NewMemoryStore(),
			PowerSource: source,
			Params:      params,
		})
		if err != nil {
			return nil, governance.Tally{}, false
		}
		ctx := context.Background()
		id, err := gov.Propose(ctx, deployer, nil, "replay")
		if err != nil {
			return nil, governance.Tally{}, false
		}
		for i := 0; i < len(voters) && i < len(supports); i++ {
			voter := common.BigToAddress(big.NewInt(int64(voters[i]) + 1))
			// Repeat voters are rejected identically on every run
			_, _ = gov.CastVote(ctx, voter, id, governance.Support(supports[i]))
		}
		records, err := gov.Events(0, 0)
		if err != nil {
			return nil, governance.Tally{}, false
		}
		tally, err := gov.Tally(id)
		return records, tally, err == nil
	}

	properties.Property("same calls give same state", prop.ForAll(
		func(voters []uint8, supports []uint8) bool {
			recordsA, tallyA, okA := run(voters, supports)
			recordsB, tallyB, okB := run(voters, supports)
			if !okA || !okB || len(recordsA) != len(recordsB) || tallyA != tallyB {
				return false
			}
			for i := range recordsA {
				if string(recordsA[i].Data) != string(recordsB[i].Data) {
					return false
				}
			}
			replayed, err := governance.ReplayTallies(recordsA)
			if err != nil {
				return false
			}
			for _, tally := range replayed {
				if tally != tallyA {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8Range(0, 15)),
		gen.SliceOf(gen.UInt8Range(0, 3)),
	))

	properties.TestingRun(t)
}

type fixedSupply struct {
	supply uint64
}

func (f fixedSupply) PowerOf(common.Address, uint64) (*uint256.Int, error) {
	return new(uint256.Int), nil
}

func (f fixedSupply) TotalSupplyAt(uint64) (*uint256.Int, error) {
	return uint256.NewInt(f.supply), nil
}

func (f fixedSupply) CurrentBlock() uint64 {
	return 100
}

func TestQuorumBoundary(t *testing.T) {
	quorum := governance.NewQuorumCalculator(fixedSupply{supply: 1000}, 4)
	testDefs := []struct {
		forVotes uint64
		abstain  uint64
		against  uint64
		expected governance.State
	}{
		{forVotes: 39, expected: governance.StateDefeated},
		{forVotes: 40, expected: governance.StateSucceeded},
		{forVotes: 20, abstain: 19, expected: governance.StateDefeated},
		{forVotes: 20, abstain: 20, expected: governance.StateSucceeded},
		{forVotes: 40, against: 40, expected: governance.StateDefeated},
		{forVotes: 1, abstain: 39, expected: governance.StateSucceeded},
	}
	for _, test := range testDefs {
		p := &governance.Proposal{SnapshotBlock: 1, StartBlock: 2, EndBlock: 3}
		p.Tally.For.SetUint64(test.forVotes)
		p.Tally.Against.SetUint64(test.against)
		p.Tally.Abstain.SetUint64(test.abstain)
		state, err := governance.DeriveState(
			p,
			10,
			governance.DefaultParams(),
			func() (*uint256.Int, error) {
				return quorum.Required(p.SnapshotBlock)
			},
		)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if state != test.expected {
			t.Errorf(
				"for=%d abstain=%d against=%d: expected %s, got %s",
				test.forVotes,
				test.abstain,
				test.against,
				test.expected,
				state,
			)
		}
	}
}
