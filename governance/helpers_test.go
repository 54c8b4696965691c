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
	"testing"

	"github.com/blinklabs-io/gavel/chain"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const (
	testVotingDelay  = 1
	testVotingPeriod = 5
)

var (
	tokenAddr    = common.HexToAddress("0x00000000000000000000000000000000000070c3")
	governorAddr = common.HexToAddress("0x0000000000000000000000000000000000009000")
	deployer     = common.HexToAddress("0x000000000000000000000000000000000000de91")
	voter1       = common.HexToAddress("0x0000000000000000000000000000000000000001")
	voter2       = common.HexToAddress("0x0000000000000000000000000000000000000002")
	outsider     = common.HexToAddress("0x0000000000000000000000000000000000000bad")
	admin        = common.HexToAddress("0x000000000000000000000000000000000000ad31")
)

// ether returns n whole 18-decimal tokens
func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(
		uint256.NewInt(n),
		uint256.NewInt(1_000_000_000_000_000_000),
	)
}

type testEnv struct {
	ctx        context.Context
	clock      *chain.Clock
	ledger     *token.Ledger
	store      *governance.MemoryStore
	dispatcher *governance.Dispatcher
	gov        *governance.Governor
}

// newTestEnv deploys 1000 tokens to deployer, hands 500 to voter1 and 300
// to voter2, self-delegates all three and mines one block
func newTestEnv(t *testing.T, mutators ...func(*governance.Params)) *testEnv {
	t.Helper()
	clock, err := chain.NewClock(chain.ClockConfig{InitialHeight: 1})
	require.NoError(t, err)
	ledger, err := token.NewLedger(token.LedgerConfig{
		Store: token.NewMemoryStore(),
		Clock: clock,
	})
	require.NoError(t, err)
	require.NoError(t, ledger.Mint(deployer, ether(1000)))
	require.NoError(t, ledger.Transfer(deployer, voter1, ether(500)))
	require.NoError(t, ledger.Transfer(deployer, voter2, ether(300)))
	require.NoError(t, ledger.Delegate(voter1, voter1))
	require.NoError(t, ledger.Delegate(voter2, voter2))
	require.NoError(t, ledger.Delegate(deployer, deployer))
	_, err = clock.Advance(1)
	require.NoError(t, err)

	params := governance.Params{
		VotingDelay:       testVotingDelay,
		VotingPeriod:      testVotingPeriod,
		ProposalThreshold: ether(100),
		QuorumPercent:     4,
		QuadraticUnit:     ether(1),
		Admin:             admin,
		GovernorAddress:   governorAddr,
	}
	for _, mutator := range mutators {
		mutator(&params)
	}
	dispatcher := governance.NewDispatcher()
	dispatcher.Register(tokenAddr, ledger)
	store := governance.NewMemoryStore()
	gov, err := governance.NewGovernor(governance.GovernorConfig{
		Store:       store,
		PowerSource: ledger,
		Executor:    dispatcher,
		Params:      params,
	})
	require.NoError(t, err)
	return &testEnv{
		ctx:        context.Background(),
		clock:      clock,
		ledger:     ledger,
		store:      store,
		dispatcher: dispatcher,
		gov:        gov,
	}
}

func (e *testEnv) mine(t *testing.T, count uint64) {
	t.Helper()
	_, err := e.clock.Advance(count)
	require.NoError(t, err)
}

func (e *testEnv) requireState(t *testing.T, id governance.ProposalID, expected governance.State) {
	t.Helper()
	state, err := e.gov.State(id)
	require.NoError(t, err)
	require.Equal(t, expected, state, "expected %s, got %s", expected, state)
}

func (e *testEnv) requireBalance(t *testing.T, account common.Address, expected *uint256.Int) {
	t.Helper()
	balance, err := e.ledger.BalanceOf(account)
	require.NoError(t, err)
	require.Equal(t, expected.Dec(), balance.Dec())
}

func transferAction(t *testing.T, to common.Address, amount *uint256.Int) governance.Action {
	t.Helper()
	payload, err := token.EncodeTransfer(to, amount)
	require.NoError(t, err)
	return governance.Action{
		Target:  tokenAddr,
		Value:   new(uint256.Int),
		Payload: payload,
	}
}

func actionsHash(t *testing.T, actions []governance.Action, description string) common.Hash {
	t.Helper()
	hash, err := governance.HashProposal(actions, governance.HashDescription(description))
	require.NoError(t, err)
	return hash
}

// succeededProposal creates a standard proposal voted through by voter1
func (e *testEnv) succeededProposal(
	t *testing.T,
	actions []governance.Action,
	description string,
) governance.ProposalID {
	t.Helper()
	id, err := e.gov.Propose(e.ctx, deployer, actions, description)
	require.NoError(t, err)
	e.mine(t, testVotingDelay+1)
	_, err = e.gov.CastVote(e.ctx, voter1, id, governance.SupportFor)
	require.NoError(t, err)
	e.mine(t, testVotingPeriod+1)
	e.requireState(t, id, governance.StateSucceeded)
	return id
}
