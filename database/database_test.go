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

package database_test

import (
	"testing"
	"time"

	"github.com/blinklabs-io/gavel/chain"
	"github.com/blinklabs-io/gavel/database"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type TestTable struct {
	gorm.Model
}

// TestInMemorySqliteMultipleTransaction tests that our sqlite connection allows multiple
// concurrent transactions when using in-memory mode. This requires special URI flags, and
// this is mostly making sure that we don't lose them
func TestInMemorySqliteMultipleTransaction(t *testing.T) {
	db, err := database.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	doQuery := func(sleep time.Duration) error {
		txn := db.Metadata().DB().Begin()
		if result := txn.First(&TestTable{}); result.Error != nil {
			return result.Error
		}
		time.Sleep(sleep)
		if result := txn.Commit(); result.Error != nil {
			return result.Error
		}
		return nil
	}
	require.NoError(t, db.Metadata().DB().AutoMigrate(&TestTable{}))
	require.NoError(t, db.Metadata().DB().Create(&TestTable{}).Error)
	done := make(chan error, 1)
	go func() {
		done <- doQuery(500 * time.Millisecond)
	}()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, doQuery(0))
	require.NoError(t, <-done)
}

// TestDatabaseWiring runs a governed token transfer with every component
// backed by the database
func TestDatabaseWiring(t *testing.T) {
	db, err := database.New(&database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	clock, err := chain.NewClock(chain.ClockConfig{Store: db.Height(), InitialHeight: 1})
	require.NoError(t, err)
	ledger, err := token.NewLedger(token.LedgerConfig{Store: db.Token(), Clock: clock})
	require.NoError(t, err)

	tokenAddr := common.HexToAddress("0x00000000000000000000000000000000000070c3")
	governorAddr := common.HexToAddress("0x0000000000000000000000000000000000009000")
	holder := common.HexToAddress("0x0000000000000000000000000000000000000001")
	recipient := common.HexToAddress("0x0000000000000000000000000000000000000002")
	require.NoError(t, ledger.Mint(holder, uint256.NewInt(1000)))
	require.NoError(t, ledger.Mint(governorAddr, uint256.NewInt(50)))
	require.NoError(t, ledger.Delegate(holder, holder))
	_, err = clock.Advance(1)
	require.NoError(t, err)

	dispatcher := governance.NewDispatcher()
	dispatcher.Register(tokenAddr, ledger)
	params := governance.DefaultParams()
	params.VotingPeriod = 5
	params.GovernorAddress = governorAddr
	gov, err := governance.NewGovernor(governance.GovernorConfig{
		Store:       db.Governance(),
		PowerSource: ledger,
		Executor:    dispatcher,
		Params:      params,
	})
	require.NoError(t, err)

	payload, err := token.EncodeTransfer(recipient, uint256.NewInt(20))
	require.NoError(t, err)
	actions := []governance.Action{{Target: tokenAddr, Payload: payload}}
	id, err := gov.Propose(t.Context(), holder, actions, "pay recipient")
	require.NoError(t, err)
	_, err = clock.Advance(2)
	require.NoError(t, err)
	_, err = gov.CastVote(t.Context(), holder, id, governance.SupportFor)
	require.NoError(t, err)
	_, err = clock.Advance(6)
	require.NoError(t, err)
	_, err = gov.ExecuteActions(t.Context(), actions, "pay recipient")
	require.NoError(t, err)

	balance, err := ledger.BalanceOf(recipient)
	require.NoError(t, err)
	assert.Equal(t, "20", balance.Dec())
	state, err := gov.State(id)
	require.NoError(t, err)
	assert.Equal(t, governance.StateExecuted, state)
	height, found, err := db.Height().LoadHeight()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, clock.Height(), height)
}
