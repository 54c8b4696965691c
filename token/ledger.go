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
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BlockClock reports the current ledger block height
type BlockClock interface {
	Height() uint64
}

type LedgerConfig struct {
	Logger *slog.Logger
	Store  Store
	Clock  BlockClock
	Name   string
	Symbol string
}

// Ledger is a checkpointed vote-delegating token. Votes only count for an
// account once it has a delegatee, which may be itself.
type Ledger struct {
	mu        sync.Mutex
	config    LedgerConfig
	journal   []journalEntry
	snapshots []int
}

type journalEntry struct {
	key   []byte
	prev  []byte
	found bool
}

func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("token ledger requires a store")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("token ledger requires a clock")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "token")
	return &Ledger{config: cfg}, nil
}

func (l *Ledger) Name() string {
	return l.config.Name
}

func (l *Ledger) Symbol() string {
	return l.config.Symbol
}

// CurrentBlock returns the block height the ledger is at
func (l *Ledger) CurrentBlock() uint64 {
	return l.config.Clock.Height()
}

// Mint creates amount new tokens owned by to
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if to == (common.Address{}) {
		return fmt.Errorf("mint: %w", ErrZeroAddress)
	}
	supply, err := l.latest(supplyPrefix())
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	balance, err := l.balanceOf(to)
	if err != nil {
		return err
	}
	if err := l.set(balanceKey(to), encodeAmount(new(uint256.Int).Add(balance, amount))); err != nil {
		return err
	}
	if err := l.pushCheckpoint(supplyPrefix(), newSupply); err != nil {
		return err
	}
	delegatee, err := l.delegates(to)
	if err != nil {
		return err
	}
	if err := l.moveVotes(common.Address{}, delegatee, amount); err != nil {
		return err
	}
	l.config.Logger.Debug(
		"minted tokens",
		"to", to.Hex(),
		"amount", amount.Dec(),
	)
	return nil
}

// Transfer moves amount from one account to another along with the
// delegated votes
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, to, amount)
}

func (l *Ledger) transfer(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return fmt.Errorf("transfer: %w", ErrZeroAddress)
	}
	fromBalance, err := l.balanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf(
			"%w: balance %s, amount %s",
			ErrInsufficientBalance,
			fromBalance.Dec(),
			amount.Dec(),
		)
	}
	if from != to {
		toBalance, err := l.balanceOf(to)
		if err != nil {
			return err
		}
		if err := l.set(balanceKey(from), encodeAmount(new(uint256.Int).Sub(fromBalance, amount))); err != nil {
			return err
		}
		if err := l.set(balanceKey(to), encodeAmount(new(uint256.Int).Add(toBalance, amount))); err != nil {
			return err
		}
	}
	fromDelegate, err := l.delegates(from)
	if err != nil {
		return err
	}
	toDelegate, err := l.delegates(to)
	if err != nil {
		return err
	}
	return l.moveVotes(fromDelegate, toDelegate, amount)
}

// Delegate assigns the voting power of account to delegatee
func (l *Ledger) Delegate(account, delegatee common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delegate(account, delegatee)
}

func (l *Ledger) delegate(account, delegatee common.Address) error {
	if account == (common.Address{}) {
		return fmt.Errorf("delegate: %w", ErrZeroAddress)
	}
	current, err := l.delegates(account)
	if err != nil {
		return err
	}
	if delegatee == (common.Address{}) {
		err = l.del(delegateKey(account))
	} else {
		err = l.set(delegateKey(account), delegatee.Bytes())
	}
	if err != nil {
		return err
	}
	balance, err := l.balanceOf(account)
	if err != nil {
		return err
	}
	l.config.Logger.Debug(
		"delegate changed",
		"account", account.Hex(),
		"from", current.Hex(),
		"to", delegatee.Hex(),
	)
	return l.moveVotes(current, delegatee, balance)
}

func (l *Ledger) BalanceOf(account common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(account)
}

func (l *Ledger) Delegates(account common.Address) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delegates(account)
}

// Votes returns the current delegated votes of account
func (l *Ledger) Votes(account common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest(votesPrefix(account))
}

// TotalSupply returns the current total supply
func (l *Ledger) TotalSupply() (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest(supplyPrefix())
}

// PowerOf returns the votes delegated to account at the end of block. Only
// past blocks can be queried.
func (l *Ledger) PowerOf(account common.Address, block uint64) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pastCheckpoint(votesPrefix(account), block)
}

// TotalSupplyAt returns the total supply at the end of block. Only past
// blocks can be queried.
func (l *Ledger) TotalSupplyAt(block uint64) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pastCheckpoint(supplyPrefix(), block)
}

func (l *Ledger) pastCheckpoint(prefix []byte, block uint64) (*uint256.Int, error) {
	current := l.config.Clock.Height()
	if block >= current {
		return nil, fmt.Errorf(
			"%w: block %d, current %d",
			ErrFutureLookup,
			block,
			current,
		)
	}
	ckpt, ok, err := lookupCheckpoint(l.config.Store, prefix, block)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return &ckpt.Value, nil
}

func (l *Ledger) latest(prefix []byte) (*uint256.Int, error) {
	ckpt, ok, err := latestCheckpoint(l.config.Store, prefix)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return &ckpt.Value, nil
}

func (l *Ledger) balanceOf(account common.Address) (*uint256.Int, error) {
	raw, err := l.config.Store.Get(balanceKey(account))
	if err != nil {
		return nil, err
	}
	return decodeAmount(raw), nil
}

func (l *Ledger) delegates(account common.Address) (common.Address, error) {
	raw, err := l.config.Store.Get(delegateKey(account))
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(raw), nil
}

func (l *Ledger) moveVotes(src, dst common.Address, amount *uint256.Int) error {
	if src == dst || amount.IsZero() {
		return nil
	}
	if src != (common.Address{}) {
		votes, err := l.latest(votesPrefix(src))
		if err != nil {
			return err
		}
		if votes.Lt(amount) {
			return fmt.Errorf(
				"%w: delegated votes of %s",
				ErrInsufficientBalance,
				src.Hex(),
			)
		}
		if err := l.pushCheckpoint(votesPrefix(src), new(uint256.Int).Sub(votes, amount)); err != nil {
			return err
		}
	}
	if dst != (common.Address{}) {
		votes, err := l.latest(votesPrefix(dst))
		if err != nil {
			return err
		}
		if err := l.pushCheckpoint(votesPrefix(dst), new(uint256.Int).Add(votes, amount)); err != nil {
			return err
		}
	}
	return nil
}

// pushCheckpoint records value at the current block, replacing an earlier
// write in the same block
func (l *Ledger) pushCheckpoint(prefix []byte, value *uint256.Int) error {
	return l.set(
		checkpointKey(prefix, l.config.Clock.Height()),
		encodeAmount(value),
	)
}
