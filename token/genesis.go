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

package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Allocation is minted to Address when the ledger is first created. A
// non-nil Delegate also delegates the account's votes.
type Allocation struct {
	Address  common.Address
	Amount   *uint256.Int
	Delegate *common.Address
}

// ApplyGenesis mints the allocations into an empty ledger. It does nothing
// once any supply exists and reports whether the allocations were applied.
func (l *Ledger) ApplyGenesis(allocs []Allocation) (bool, error) {
	supply, err := l.TotalSupply()
	if err != nil {
		return false, err
	}
	if !supply.IsZero() || len(allocs) == 0 {
		return false, nil
	}
	snap := l.Snapshot()
	if err := l.applyGenesis(allocs); err != nil {
		if revertErr := l.RevertToSnapshot(snap); revertErr != nil {
			return false, errors.Join(err, revertErr)
		}
		return false, err
	}
	l.DiscardSnapshot(snap)
	l.config.Logger.Info(
		"applied genesis allocations",
		"allocations", len(allocs),
	)
	return true, nil
}

func (l *Ledger) applyGenesis(allocs []Allocation) error {
	for i, alloc := range allocs {
		if alloc.Amount == nil {
			return fmt.Errorf("genesis allocation %d: missing amount", i)
		}
		if err := l.Mint(alloc.Address, alloc.Amount); err != nil {
			return fmt.Errorf("genesis allocation %d: %w", i, err)
		}
		if alloc.Delegate != nil {
			if err := l.Delegate(alloc.Address, *alloc.Delegate); err != nil {
				return fmt.Errorf("genesis allocation %d: %w", i, err)
			}
		}
	}
	return nil
}
