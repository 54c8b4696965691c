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
	"errors"
	"testing"

	"github.com/blinklabs-io/gavel/event"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposeBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.gov.Propose(env.ctx, outsider, nil, "Tiny proposal")
	require.ErrorIs(t, err, governance.ErrBelowThreshold)
	proposals, err := env.gov.Proposals()
	require.NoError(t, err)
	assert.Empty(t, proposals)
}

func TestProposeAtGenesisBlockHasNoPower(t *testing.T) {
	env := newTestEnv(t)
	source := &fixedPowerSource{current: 0, power: ether(1000)}
	gov, err := governance.NewGovernor(governance.GovernorConfig{
		Store:       governance.NewMemoryStore(),
		PowerSource: source,
		Params:      env.gov.Params(),
	})
	require.NoError(t, err)
	_, err = gov.Propose(env.ctx, deployer, nil, "genesis")
	require.ErrorIs(t, err, governance.ErrBelowThreshold)
}

func TestStandardLifecycle(t *testing.T) {
	env := newTestEnv(t)
	actions := []governance.Action{transferAction(t, voter2, ether(1))}
	description := "Transfer 1 GOV to voter2"
	require.NoError(t, env.ledger.Transfer(deployer, governorAddr, ether(10)))

	id, err := env.gov.Propose(env.ctx, deployer, actions, description)
	require.NoError(t, err)
	assert.Equal(t, actionsHash(t, actions, description), id)
	env.requireState(t, id, governance.StatePending)

	_, err = env.gov.CastVote(env.ctx, voter1, id, governance.SupportFor)
	require.ErrorIs(t, err, governance.ErrVotingClosed)

	env.mine(t, testVotingDelay+1)
	env.requireState(t, id, governance.StateActive)

	weight, err := env.gov.CastVote(env.ctx, voter1, id, governance.SupportFor)
	require.NoError(t, err)
	assert.Equal(t, ether(500).Dec(), weight.Dec())
	_, err = env.gov.CastVote(env.ctx, voter2, id, governance.SupportAgainst)
	require.NoError(t, err)

	env.mine(t, testVotingPeriod+1)
	env.requireState(t, id, governance.StateSucceeded)

	_, err = env.gov.ExecuteActions(env.ctx, actions, description)
	require.NoError(t, err)
	env.requireState(t, id, governance.StateExecuted)
	env.requireBalance(t, voter2, ether(301))
	env.requireBalance(t, governorAddr, ether(9))

	err = env.gov.Execute(env.ctx, id, id)
	require.ErrorIs(t, err, governance.ErrAlreadyExecuted)
}

func TestQuadraticVoting(t *testing.T) {
	env := newTestEnv(t)
	actions := []governance.Action{transferAction(t, voter1, ether(1))}
	id, err := env.gov.ProposeWithType(
		env.ctx,
		deployer,
		actions,
		"Quadratic transfer",
		governance.VotingModeQuadratic,
	)
	require.NoError(t, err)
	mode, err := env.gov.VotingMode(id)
	require.NoError(t, err)
	assert.Equal(t, governance.VotingModeQuadratic, mode)

	env.mine(t, testVotingDelay+1)

	_, err = env.gov.CastQuadraticVote(env.ctx, voter1, id, governance.SupportFor, 30)
	require.ErrorIs(t, err, governance.ErrInsufficientPower)

	weight, err := env.gov.CastQuadraticVote(env.ctx, voter1, id, governance.SupportFor, 9)
	require.NoError(t, err)
	assert.Equal(t, ether(9).Dec(), weight.Dec())

	tally, err := env.gov.Tally(id)
	require.NoError(t, err)
	assert.Equal(t, ether(9).Dec(), tally.For.Dec())

	receipt, err := env.gov.Receipt(id, voter1)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, ether(81).Dec(), receipt.Cost.Dec())

	_, err = env.gov.CastQuadraticVote(env.ctx, voter1, id, governance.SupportFor, 1)
	require.ErrorIs(t, err, governance.ErrAlreadyVoted)
	_, err = env.gov.CastQuadraticVote(env.ctx, voter2, id, governance.SupportFor, 0)
	require.ErrorIs(t, err, governance.ErrInvalidVoteCount)
	_, err = env.gov.CastVote(env.ctx, voter2, id, governance.SupportFor)
	require.ErrorIs(t, err, governance.ErrVotingModeMismatch)
}

func TestQuadraticVoteOverflowIsInsufficientPower(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.gov.ProposeWithType(env.ctx, deployer, nil, "overflow", governance.VotingModeQuadratic)
	require.NoError(t, err)
	env.mine(t, testVotingDelay+1)
	_, err = env.gov.CastQuadraticVote(env.ctx, voter1, id, governance.SupportFor, ^uint64(0))
	require.ErrorIs(t, err, governance.ErrInsufficientPower)
}

func TestVotingWindowBoundaries(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.gov.Propose(env.ctx, deployer, nil, "window")
	require.NoError(t, err)
	p, err := env.gov.Proposal(id)
	require.NoError(t, err)
	snapshot, err := env.gov.Snapshot(id)
	require.NoError(t, err)
	deadline, err := env.gov.Deadline(id)
	require.NoError(t, err)
	assert.Equal(t, p.StartBlock-1, snapshot)
	assert.Equal(t, p.StartBlock+testVotingPeriod, deadline)

	// Voting opens exactly at the start block
	env.mine(t, p.StartBlock-env.clock.Height())
	_, err = env.gov.CastVote(env.ctx, voter1, id, governance.SupportFor)
	require.NoError(t, err)

	// and closes at the deadline
	env.mine(t, deadline-env.clock.Height())
	_, err = env.gov.CastVote(env.ctx, voter2, id, governance.SupportFor)
	require.ErrorIs(t, err, governance.ErrVotingClosed)
}

func TestCastVoteRejections(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.gov.CastVote(env.ctx, voter1, common.Hash{1}, governance.SupportFor)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)

	id, err := env.gov.Propose(env.ctx, deployer, nil, "rejections")
	require.NoError(t, err)
	env.mine(t, testVotingDelay+1)

	_, err = env.gov.CastVote(env.ctx, voter1, id, governance.Support(3))
	require.ErrorIs(t, err, governance.ErrInvalidSupport)
	_, err = env.gov.CastVote(env.ctx, voter1, id, governance.SupportAbstain)
	require.NoError(t, err)
	_, err = env.gov.CastVote(env.ctx, voter1, id, governance.SupportFor)
	require.ErrorIs(t, err, governance.ErrAlreadyVoted)

	tally, err := env.gov.Tally(id)
	require.NoError(t, err)
	assert.True(t, tally.For.IsZero())
	assert.Equal(t, ether(500).Dec(), tally.Abstain.Dec())
}

func TestProposeDuplicate(t *testing.T) {
	env := newTestEnv(t)
	actions := []governance.Action{transferAction(t, voter1, ether(1))}
	_, err := env.gov.Propose(env.ctx, deployer, actions, "same")
	require.NoError(t, err)
	_, err = env.gov.Propose(env.ctx, deployer, actions, "same")
	require.ErrorIs(t, err, governance.ErrProposalExists)
	_, err = env.gov.Propose(env.ctx, deployer, actions, "different")
	require.NoError(t, err)
	_, err = env.gov.ProposeWithType(env.ctx, deployer, actions, "mode", governance.VotingMode(7))
	require.ErrorIs(t, err, governance.ErrInvalidVotingMode)
}

func TestDefeatedOutcomes(t *testing.T) {
	testDefs := []struct {
		name  string
		votes map[common.Address]governance.Support
	}{
		{
			name: "no votes",
		},
		{
			name: "tie",
			votes: map[common.Address]governance.Support{
				voter2:   governance.SupportFor,
				deployer: governance.SupportAgainst,
			},
		},
		{
			name: "majority against",
			votes: map[common.Address]governance.Support{
				voter1: governance.SupportAgainst,
				voter2: governance.SupportFor,
			},
		},
		{
			name: "abstain only",
			votes: map[common.Address]governance.Support{
				voter1: governance.SupportAbstain,
			},
		},
	}
	for _, test := range testDefs {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnv(t, func(p *governance.Params) {
				p.ProposalThreshold = new(uint256.Int)
			})
			// deployer and voter2 both end up holding 250
			require.NoError(t, env.ledger.Transfer(voter2, deployer, ether(50)))
			env.mine(t, 1)
			id, err := env.gov.Propose(env.ctx, deployer, nil, test.name)
			require.NoError(t, err)
			env.mine(t, testVotingDelay+1)
			for voter, support := range test.votes {
				_, err := env.gov.CastVote(env.ctx, voter, id, support)
				require.NoError(t, err)
			}
			env.mine(t, testVotingPeriod+1)
			env.requireState(t, id, governance.StateDefeated)
			err = env.gov.Execute(env.ctx, id, id)
			require.ErrorIs(t, err, governance.ErrNotSucceeded)
		})
	}
}

func TestQuorumCountsAbstain(t *testing.T) {
	env := newTestEnv(t, func(p *governance.Params) {
		// 60% of 1000 requires 600
		p.QuorumPercent = 60
	})
	id, err := env.gov.Propose(env.ctx, deployer, nil, "abstain quorum")
	require.NoError(t, err)
	env.mine(t, testVotingDelay+1)
	_, err = env.gov.CastVote(env.ctx, voter1, id, governance.SupportAbstain)
	require.NoError(t, err)
	_, err = env.gov.CastVote(env.ctx, deployer, id, governance.SupportFor)
	require.NoError(t, err)
	env.mine(t, testVotingPeriod+1)
	env.requireState(t, id, governance.StateSucceeded)

	required, err := env.gov.Quorum(2)
	require.NoError(t, err)
	assert.Equal(t, ether(600).Dec(), required.Dec())
}

func TestExecuteRejections(t *testing.T) {
	env := newTestEnv(t)
	actions := []governance.Action{transferAction(t, voter2, ether(1))}
	id, err := env.gov.Propose(env.ctx, deployer, actions, "early")
	require.NoError(t, err)
	err = env.gov.Execute(env.ctx, id, id)
	require.ErrorIs(t, err, governance.ErrNotSucceeded)

	err = env.gov.Execute(env.ctx, common.Hash{9}, common.Hash{9})
	require.ErrorIs(t, err, governance.ErrProposalNotFound)

	env.mine(t, testVotingDelay+1)
	_, err = env.gov.CastVote(env.ctx, voter1, id, governance.SupportFor)
	require.NoError(t, err)
	env.mine(t, testVotingPeriod+1)
	err = env.gov.Execute(env.ctx, id, actionsHash(t, actions, "other"))
	require.ErrorIs(t, err, governance.ErrHashMismatch)
	env.requireState(t, id, governance.StateSucceeded)
}

func TestExecuteIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.ledger.Transfer(deployer, governorAddr, ether(10)))
	actions := []governance.Action{
		transferAction(t, voter2, ether(4)),
		transferAction(t, voter2, ether(7)),
	}
	id := env.succeededProposal(t, actions, "overdraw")
	err := env.gov.Execute(env.ctx, id, id)
	require.ErrorIs(t, err, governance.ErrActionFailed)
	env.requireBalance(t, governorAddr, ether(10))
	env.requireBalance(t, voter2, ether(300))
	env.requireState(t, id, governance.StateSucceeded)

	events, err := env.gov.Events(0, 0)
	require.NoError(t, err)
	for _, rec := range events {
		assert.NotEqual(t, governance.ProposalExecutedEventType, rec.Type)
	}
}

func TestExecuteUnknownTarget(t *testing.T) {
	env := newTestEnv(t)
	actions := []governance.Action{{Target: outsider}}
	id := env.succeededProposal(t, actions, "nowhere")
	err := env.gov.Execute(env.ctx, id, id)
	require.ErrorIs(t, err, governance.ErrActionFailed)
	require.ErrorIs(t, err, governance.ErrUnknownTarget)
}

func TestExecuteEmptyActions(t *testing.T) {
	env := newTestEnv(t)
	id := env.succeededProposal(t, nil, "signal only")
	_, err := env.gov.ExecuteActions(env.ctx, nil, "signal only")
	require.NoError(t, err)
	env.requireState(t, id, governance.StateExecuted)
}

// reentrantTarget calls back into the governor while executing
type reentrantTarget struct {
	gov     *governance.Governor
	id      governance.ProposalID
	voteErr error
	execErr error
}

func (r *reentrantTarget) Call(ctx context.Context, _ common.Address, _ *uint256.Int, _ []byte) error {
	_, r.voteErr = r.gov.CastVote(ctx, voter2, r.id, governance.SupportFor)
	r.execErr = r.gov.Execute(ctx, r.id, r.id)
	return nil
}

func (r *reentrantTarget) Snapshot() int                { return 0 }
func (r *reentrantTarget) RevertToSnapshot(_ int) error { return nil }
func (r *reentrantTarget) DiscardSnapshot(_ int)        {}

func TestExecuteReentrancy(t *testing.T) {
	env := newTestEnv(t)
	targetAddr := common.HexToAddress("0x000000000000000000000000000000000000e11e")
	target := &reentrantTarget{gov: env.gov}
	env.dispatcher.Register(targetAddr, target)
	actions := []governance.Action{{Target: targetAddr}}
	id := env.succeededProposal(t, actions, "reenter")
	target.id = id
	require.NoError(t, env.gov.Execute(env.ctx, id, id))
	require.ErrorIs(t, target.voteErr, governance.ErrVotingClosed)
	require.ErrorIs(t, target.execErr, governance.ErrAlreadyExecuted)
	env.requireState(t, id, governance.StateExecuted)
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.gov.Propose(env.ctx, deployer, nil, "cancel me")
	require.NoError(t, err)
	err = env.gov.Cancel(env.ctx, outsider, id)
	require.ErrorIs(t, err, governance.ErrUnauthorized)
	require.NoError(t, env.gov.Cancel(env.ctx, deployer, id))
	env.requireState(t, id, governance.StateCanceled)
	err = env.gov.Cancel(env.ctx, deployer, id)
	require.ErrorIs(t, err, governance.ErrNotCancelable)

	env.mine(t, testVotingDelay+1)
	_, err = env.gov.CastVote(env.ctx, voter1, id, governance.SupportFor)
	require.ErrorIs(t, err, governance.ErrVotingClosed)

	id, err = env.gov.Propose(env.ctx, deployer, nil, "admin cancel")
	require.NoError(t, err)
	env.mine(t, testVotingDelay+1)
	env.requireState(t, id, governance.StateActive)
	require.NoError(t, env.gov.Cancel(env.ctx, admin, id))
	env.requireState(t, id, governance.StateCanceled)
}

func TestCancelAfterVoting(t *testing.T) {
	env := newTestEnv(t)
	id := env.succeededProposal(t, nil, "too late")
	err := env.gov.Cancel(env.ctx, deployer, id)
	require.ErrorIs(t, err, governance.ErrNotCancelable)
}

func TestTimelock(t *testing.T) {
	env := newTestEnv(t, func(p *governance.Params) {
		p.TimelockDelay = 2
		p.GracePeriod = 3
	})
	require.NoError(t, env.ledger.Transfer(deployer, governorAddr, ether(10)))
	actions := []governance.Action{transferAction(t, voter1, ether(2))}
	id := env.succeededProposal(t, actions, "timelocked")

	err := env.gov.Execute(env.ctx, id, id)
	require.ErrorIs(t, err, governance.ErrNotSucceeded)
	_, err = env.gov.Queue(env.ctx, id, common.Hash{})
	require.ErrorIs(t, err, governance.ErrHashMismatch)

	eta, err := env.gov.Queue(env.ctx, id, id)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Height()+2, eta)
	env.requireState(t, id, governance.StateQueued)
	_, err = env.gov.Queue(env.ctx, id, id)
	require.ErrorIs(t, err, governance.ErrNotSucceeded)

	err = env.gov.Execute(env.ctx, id, id)
	require.ErrorIs(t, err, governance.ErrNotSucceeded)
	env.mine(t, 2)
	require.NoError(t, env.gov.Execute(env.ctx, id, id))
	env.requireBalance(t, voter1, ether(502))
}

func TestTimelockExpiry(t *testing.T) {
	env := newTestEnv(t, func(p *governance.Params) {
		p.TimelockDelay = 2
		p.GracePeriod = 3
	})
	id := env.succeededProposal(t, nil, "expires")
	_, err := env.gov.Queue(env.ctx, id, id)
	require.NoError(t, err)
	env.mine(t, 5)
	env.requireState(t, id, governance.StateExpired)
	err = env.gov.Execute(env.ctx, id, id)
	require.ErrorIs(t, err, governance.ErrNotSucceeded)

	unqueued := env.succeededProposal(t, nil, "never queued")
	env.mine(t, 3)
	env.requireState(t, unqueued, governance.StateExpired)
	_, err = env.gov.Queue(env.ctx, unqueued, unqueued)
	require.ErrorIs(t, err, governance.ErrNotSucceeded)
}

func TestQueueWithoutTimelock(t *testing.T) {
	env := newTestEnv(t)
	id := env.succeededProposal(t, nil, "no timelock")
	_, err := env.gov.Queue(env.ctx, id, id)
	require.ErrorIs(t, err, governance.ErrTimelockNotConfigured)
}

func TestEventLogAndReplay(t *testing.T) {
	env := newTestEnv(t)
	bus := event.NewEventBus(nil, nil)
	defer bus.Close()
	_, voteCh := bus.Subscribe(governance.VoteCastEventType)
	gov, err := governance.NewGovernor(governance.GovernorConfig{
		EventBus:    bus,
		Store:       env.store,
		PowerSource: env.ledger,
		Executor:    env.dispatcher,
		Params:      env.gov.Params(),
	})
	require.NoError(t, err)

	first, err := gov.Propose(env.ctx, deployer, nil, "first")
	require.NoError(t, err)
	second, err := gov.Propose(env.ctx, voter1, nil, "second")
	require.NoError(t, err)
	env.mine(t, testVotingDelay+1)
	_, err = gov.CastVote(env.ctx, voter1, first, governance.SupportFor)
	require.NoError(t, err)
	_, err = gov.CastVoteWithReason(env.ctx, voter2, first, governance.SupportAgainst, "too costly")
	require.NoError(t, err)
	_, err = gov.CastVote(env.ctx, deployer, second, governance.SupportAbstain)
	require.NoError(t, err)

	evt := <-voteCh
	govEvt, ok := evt.Data.(governance.GovernanceEvent)
	require.True(t, ok)
	vote, ok := govEvt.Payload.(governance.VoteCastEvent)
	require.True(t, ok)
	assert.Equal(t, voter1, vote.Voter)
	assert.Equal(t, uint64(3), govEvt.Record.Seq)

	records, err := gov.Events(0, 0)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, uint64(i+1), rec.Seq)
	}
	page, err := gov.Events(4, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(4), page[0].Seq)

	replayed, err := governance.ReplayTallies(records)
	require.NoError(t, err)
	require.Len(t, replayed, 2)
	for _, id := range []governance.ProposalID{first, second} {
		live, err := gov.Tally(id)
		require.NoError(t, err)
		assert.Equal(t, live, replayed[id])
	}
}

func TestGovernorMetrics(t *testing.T) {
	env := newTestEnv(t)
	reg := prometheus.NewRegistry()
	gov, err := governance.NewGovernor(governance.GovernorConfig{
		PromRegistry: reg,
		Store:        env.store,
		PowerSource:  env.ledger,
		Params:       env.gov.Params(),
	})
	require.NoError(t, err)
	_, err = gov.Propose(env.ctx, deployer, nil, "metrics")
	require.NoError(t, err)
	_, err = gov.Propose(env.ctx, outsider, nil, "rejected")
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "gavel_governance_proposals_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = testutil.GatherAndCount(reg, "gavel_governance_rejections_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReason(t *testing.T) {
	testDefs := []struct {
		err      error
		expected string
	}{
		{err: nil, expected: ""},
		{err: governance.ErrBelowThreshold, expected: "BelowThreshold"},
		{err: errors.Join(errors.New("ctx"), governance.ErrHashMismatch), expected: "HashMismatch"},
		{err: errors.New("disk on fire"), expected: "Internal"},
	}
	for _, test := range testDefs {
		assert.Equal(t, test.expected, governance.Reason(test.err))
	}
	assert.True(t, governance.IsRejection(governance.ErrAlreadyVoted))
	assert.False(t, governance.IsRejection(errors.New("disk on fire")))
}

func TestNewGovernorValidatesParams(t *testing.T) {
	env := newTestEnv(t)
	params := env.gov.Params()
	params.VotingPeriod = 0
	_, err := governance.NewGovernor(governance.GovernorConfig{
		Store:       governance.NewMemoryStore(),
		PowerSource: env.ledger,
		Params:      params,
	})
	require.Error(t, err)
}

type fixedPowerSource struct {
	current uint64
	power   *uint256.Int
}

func (f *fixedPowerSource) PowerOf(common.Address, uint64) (*uint256.Int, error) {
	return f.power, nil
}

func (f *fixedPowerSource) TotalSupplyAt(uint64) (*uint256.Int, error) {
	return f.power, nil
}

func (f *fixedPowerSource) CurrentBlock() uint64 {
	return f.current
}
