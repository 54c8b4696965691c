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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// VotingPowerSource provides historical voting power. Lookups at or after
// the current block are refused by implementations.
type VotingPowerSource interface {
	PowerOf(account common.Address, block uint64) (*uint256.Int, error)
	TotalSupplyAt(block uint64) (*uint256.Int, error)
	CurrentBlock() uint64
}

// ThresholdGuard admits proposers holding at least the proposal threshold
// at the block before creation
type ThresholdGuard struct {
	source    VotingPowerSource
	threshold *uint256.Int
}

func NewThresholdGuard(source VotingPowerSource, threshold *uint256.Int) ThresholdGuard {
	if threshold == nil {
		threshold = new(uint256.Int)
	}
	return ThresholdGuard{
		source:    source,
		threshold: threshold,
	}
}

// Check returns ErrBelowThreshold when proposer is not eligible at
// currentBlock
func (g ThresholdGuard) Check(proposer common.Address, currentBlock uint64) error {
	power := new(uint256.Int)
	if currentBlock > 0 {
		var err error
		power, err = g.source.PowerOf(proposer, currentBlock-1)
		if err != nil {
			return fmt.Errorf("proposer voting power: %w", err)
		}
	}
	if power.Lt(g.threshold) {
		return fmt.Errorf(
			"%w: have %s, need %s",
			ErrBelowThreshold,
			power.Dec(),
			g.threshold.Dec(),
		)
	}
	return nil
}

// QuorumCalculator computes the participation a proposal needs
type QuorumCalculator struct {
	source  VotingPowerSource
	percent uint64
}

func NewQuorumCalculator(source VotingPowerSource, percent uint64) QuorumCalculator {
	return QuorumCalculator{
		source:  source,
		percent: percent,
	}
}

// Required returns the quorum for a proposal snapshotted at block
func (q QuorumCalculator) Required(snapshotBlock uint64) (*uint256.Int, error) {
	supply, err := q.source.TotalSupplyAt(snapshotBlock)
	if err != nil {
		return nil, fmt.Errorf("total supply at %d: %w", snapshotBlock, err)
	}
	return RequiredQuorum(supply, q.percent), nil
}

// RequiredQuorum returns supply * percent / 100 rounded down
func RequiredQuorum(supply *uint256.Int, percent uint64) *uint256.Int {
	ret, overflow := new(uint256.Int).MulOverflow(supply, uint256.NewInt(percent))
	if overflow {
		// Divide first, only loses the remainder of supply / 100
		ret = new(uint256.Int).Div(supply, uint256.NewInt(100))
		return ret.Mul(ret, uint256.NewInt(percent))
	}
	return ret.Div(ret, uint256.NewInt(100))
}

// QuorumReached reports whether for and abstain weight meet required
func QuorumReached(tally *Tally, required *uint256.Int) bool {
	return !tally.Participation().Lt(required)
}

// QuadraticCost returns the weight credited and the power consumed by
// casting count quadratic votes. Overflow is reported instead of wrapping.
func QuadraticCost(count uint64, unit *uint256.Int) (*uint256.Int, *uint256.Int, bool) {
	n := uint256.NewInt(count)
	weight, overflow := new(uint256.Int).MulOverflow(n, unit)
	if overflow {
		return nil, nil, true
	}
	cost, overflow := new(uint256.Int).MulOverflow(weight, n)
	if overflow {
		return nil, nil, true
	}
	return weight, cost, false
}
