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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/blinklabs-io/gavel/event"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blinklabs-io/gavel/governance"

type GovernorConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Store        Store
	PowerSource  VotingPowerSource
	Executor     ActionExecutor
	Params       Params
}

// Governor owns the proposal lifecycle. Calls are not safe for concurrent
// use; see Sequencer.
type Governor struct {
	config    GovernorConfig
	params    Params
	guard     ThresholdGuard
	quorum    QuorumCalculator
	metrics   *governanceMetrics
	tracer    trace.Tracer
	executing map[ProposalID]struct{}
}

func NewGovernor(cfg GovernorConfig) (*Governor, error) {
	if cfg.Store == nil {
		return nil, errors.New("governor requires a store")
	}
	if cfg.PowerSource == nil {
		return nil, errors.New("governor requires a voting power source")
	}
	if cfg.Executor == nil {
		cfg.Executor = NewDispatcher()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "governance")
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid governance params: %w", err)
	}
	g := &Governor{
		config:    cfg,
		params:    cfg.Params,
		guard:     NewThresholdGuard(cfg.PowerSource, cfg.Params.ProposalThreshold),
		quorum:    NewQuorumCalculator(cfg.PowerSource, cfg.Params.QuorumPercent),
		tracer:    otel.Tracer(tracerName),
		executing: make(map[ProposalID]struct{}),
	}
	if cfg.PromRegistry != nil {
		g.metrics = &governanceMetrics{}
		g.metrics.init(cfg.PromRegistry)
	}
	return g, nil
}

func (g *Governor) Params() Params {
	return g.params
}

func (g *Governor) CurrentBlock() uint64 {
	return g.config.PowerSource.CurrentBlock()
}

// Propose creates a standard-mode proposal
func (g *Governor) Propose(
	ctx context.Context,
	proposer common.Address,
	actions []Action,
	description string,
) (ProposalID, error) {
	return g.ProposeWithType(ctx, proposer, actions, description, VotingModeStandard)
}

// ProposeWithType creates a proposal voted on in the given mode
func (g *Governor) ProposeWithType(
	ctx context.Context,
	proposer common.Address,
	actions []Action,
	description string,
	mode VotingMode,
) (ProposalID, error) {
	_, span := g.tracer.Start(ctx, "governance.propose")
	defer span.End()
	if !mode.Valid() {
		return ProposalID{}, g.reject(span, "propose", fmt.Errorf("%w: %d", ErrInvalidVotingMode, mode))
	}
	current := g.CurrentBlock()
	if err := g.guard.Check(proposer, current); err != nil {
		return ProposalID{}, g.reject(span, "propose", err)
	}
	descriptionHash := HashDescription(description)
	id, err := HashProposal(actions, descriptionHash)
	if err != nil {
		return ProposalID{}, g.reject(span, "propose", fmt.Errorf("hash proposal: %w", err))
	}
	span.SetAttributes(attribute.String("proposal.id", id.Hex()))
	if _, err := g.config.Store.Proposal(id); err == nil {
		return ProposalID{}, g.reject(span, "propose", fmt.Errorf("%w: %s", ErrProposalExists, id.Hex()))
	} else if !errors.Is(err, ErrProposalNotFound) {
		return ProposalID{}, g.reject(span, "propose", err)
	}
	start := current + g.params.VotingDelay
	p := &Proposal{
		ID:              id,
		Proposer:        proposer,
		Description:     description,
		DescriptionHash: descriptionHash,
		Actions:         make([]Action, len(actions)),
		Mode:            mode,
		CreatedBlock:    current,
		SnapshotBlock:   snapshotBlock(start),
		StartBlock:      start,
		EndBlock:        start + g.params.VotingPeriod,
	}
	for i, action := range actions {
		p.Actions[i] = action.clone()
		if p.Actions[i].Value == nil {
			p.Actions[i].Value = new(uint256.Int)
		}
	}
	payload := ProposalCreatedEvent{
		ProposalID:    id,
		Proposer:      proposer,
		Actions:       NewActionRecords(p.Actions),
		SnapshotBlock: p.SnapshotBlock,
		StartBlock:    p.StartBlock,
		EndBlock:      p.EndBlock,
		Description:   description,
		Mode:          mode,
	}
	if err := g.commit(current, ProposalCreatedEventType, id, payload, []*Proposal{p}, nil); err != nil {
		return ProposalID{}, g.reject(span, "propose", err)
	}
	if g.metrics != nil {
		g.metrics.proposalsCreated.Inc()
	}
	g.config.Logger.Info(
		"proposal created",
		"proposal", id.Hex(),
		"proposer", proposer.Hex(),
		"mode", mode.String(),
		"start_block", p.StartBlock,
		"end_block", p.EndBlock,
	)
	return id, nil
}

func snapshotBlock(start uint64) uint64 {
	if start == 0 {
		return 0
	}
	return start - 1
}

// CastVote credits the voter's full snapshot power to support
func (g *Governor) CastVote(
	ctx context.Context,
	voter common.Address,
	id ProposalID,
	support Support,
) (*uint256.Int, error) {
	return g.castVote(ctx, voter, id, support, VotingModeStandard, 0, "")
}

// CastVoteWithReason is CastVote with a free text reason recorded in the
// event log
func (g *Governor) CastVoteWithReason(
	ctx context.Context,
	voter common.Address,
	id ProposalID,
	support Support,
	reason string,
) (*uint256.Int, error) {
	return g.castVote(ctx, voter, id, support, VotingModeStandard, 0, reason)
}

// CastQuadraticVote casts count votes, charging count squared units of
// voting power
func (g *Governor) CastQuadraticVote(
	ctx context.Context,
	voter common.Address,
	id ProposalID,
	support Support,
	count uint64,
) (*uint256.Int, error) {
	return g.castVote(ctx, voter, id, support, VotingModeQuadratic, count, "")
}

func (g *Governor) castVote(
	ctx context.Context,
	voter common.Address,
	id ProposalID,
	support Support,
	mode VotingMode,
	count uint64,
	reason string,
) (*uint256.Int, error) {
	_, span := g.tracer.Start(
		ctx,
		"governance.cast_vote",
		trace.WithAttributes(
			attribute.String("proposal.id", id.Hex()),
			attribute.String("voting.mode", mode.String()),
		),
	)
	defer span.End()
	if !support.Valid() {
		return nil, g.reject(span, "vote", fmt.Errorf("%w: %d", ErrInvalidSupport, support))
	}
	if mode == VotingModeQuadratic && count == 0 {
		return nil, g.reject(span, "vote", ErrInvalidVoteCount)
	}
	p, err := g.config.Store.Proposal(id)
	if err != nil {
		return nil, g.reject(span, "vote", err)
	}
	current := g.CurrentBlock()
	state, err := g.stateOf(p, current)
	if err != nil {
		return nil, g.reject(span, "vote", err)
	}
	if state != StateActive {
		return nil, g.reject(span, "vote", fmt.Errorf("%w: proposal is %s", ErrVotingClosed, state))
	}
	if p.Mode != mode {
		return nil, g.reject(
			span,
			"vote",
			fmt.Errorf("%w: proposal uses %s voting", ErrVotingModeMismatch, p.Mode),
		)
	}
	receipt, err := g.config.Store.Receipt(id, voter)
	if err != nil {
		return nil, g.reject(span, "vote", err)
	}
	if receipt != nil {
		return nil, g.reject(span, "vote", fmt.Errorf("%w: %s", ErrAlreadyVoted, voter.Hex()))
	}
	power, err := g.config.PowerSource.PowerOf(voter, p.SnapshotBlock)
	if err != nil {
		return nil, g.reject(span, "vote", fmt.Errorf("voter power: %w", err))
	}
	weight, cost := power, power
	if mode == VotingModeQuadratic {
		var overflow bool
		weight, cost, overflow = QuadraticCost(count, g.params.QuadraticUnit)
		if overflow || cost.Gt(power) {
			return nil, g.reject(
				span,
				"vote",
				fmt.Errorf("%w: %d votes exceed power %s", ErrInsufficientPower, count, power.Dec()),
			)
		}
	}
	updated := p.Clone()
	if err := updated.Tally.Add(support, weight); err != nil {
		return nil, g.reject(span, "vote", err)
	}
	receipt = &Receipt{
		ProposalID: id,
		Voter:      voter,
		Support:    support,
		Reason:     reason,
	}
	receipt.Weight.Set(weight)
	receipt.Cost.Set(cost)
	payload := VoteCastEvent{
		Voter:      voter,
		ProposalID: id,
		Support:    support,
		Weight:     weight.Dec(),
		Cost:       cost.Dec(),
		Reason:     reason,
		Mode:       mode,
	}
	batch := &Batch{
		Proposals: []*Proposal{updated},
		Receipts:  []*Receipt{receipt},
	}
	if err := g.commitBatch(current, VoteCastEventType, id, payload, batch); err != nil {
		return nil, g.reject(span, "vote", err)
	}
	if g.metrics != nil {
		g.metrics.votesCast.WithLabelValues(mode.String(), support.String()).Inc()
		weightFloat, _ := new(big.Float).SetInt(weight.ToBig()).Float64()
		g.metrics.voteWeight.WithLabelValues(support.String()).Add(weightFloat)
	}
	g.config.Logger.Debug(
		"vote cast",
		"proposal", id.Hex(),
		"voter", voter.Hex(),
		"support", support.String(),
		"weight", weight.Dec(),
	)
	return weight, nil
}

// Queue schedules a succeeded proposal for execution after the timelock
// delay and returns the earliest execution block
func (g *Governor) Queue(
	ctx context.Context,
	id ProposalID,
	actionsHash common.Hash,
) (uint64, error) {
	_, span := g.tracer.Start(
		ctx,
		"governance.queue",
		trace.WithAttributes(attribute.String("proposal.id", id.Hex())),
	)
	defer span.End()
	if g.params.TimelockDelay == 0 {
		return 0, g.reject(span, "queue", ErrTimelockNotConfigured)
	}
	p, err := g.config.Store.Proposal(id)
	if err != nil {
		return 0, g.reject(span, "queue", err)
	}
	current := g.CurrentBlock()
	state, err := g.stateOf(p, current)
	if err != nil {
		return 0, g.reject(span, "queue", err)
	}
	if state != StateSucceeded {
		return 0, g.reject(span, "queue", fmt.Errorf("%w: proposal is %s", ErrNotSucceeded, state))
	}
	if err := verifyActionsHash(p, actionsHash); err != nil {
		return 0, g.reject(span, "queue", err)
	}
	updated := p.Clone()
	updated.Queued = true
	updated.ETA = current + g.params.TimelockDelay
	payload := ProposalQueuedEvent{
		ProposalID: id,
		ETA:        updated.ETA,
	}
	if err := g.commit(current, ProposalQueuedEventType, id, payload, []*Proposal{updated}, nil); err != nil {
		return 0, g.reject(span, "queue", err)
	}
	if g.metrics != nil {
		g.metrics.proposalsQueued.Inc()
	}
	g.config.Logger.Info(
		"proposal queued",
		"proposal", id.Hex(),
		"eta", updated.ETA,
	)
	return updated.ETA, nil
}

// Execute applies the actions of a succeeded proposal. actionsHash must
// match the hash of the stored actions and description.
func (g *Governor) Execute(
	ctx context.Context,
	id ProposalID,
	actionsHash common.Hash,
) error {
	ctx, span := g.tracer.Start(
		ctx,
		"governance.execute",
		trace.WithAttributes(attribute.String("proposal.id", id.Hex())),
	)
	defer span.End()
	if _, ok := g.executing[id]; ok {
		return g.reject(span, "execute", fmt.Errorf("%w: %s", ErrAlreadyExecuted, id.Hex()))
	}
	p, err := g.config.Store.Proposal(id)
	if err != nil {
		return g.reject(span, "execute", err)
	}
	if p.Executed {
		return g.reject(span, "execute", fmt.Errorf("%w: %s", ErrAlreadyExecuted, id.Hex()))
	}
	current := g.CurrentBlock()
	state, err := g.stateOf(p, current)
	if err != nil {
		return g.reject(span, "execute", err)
	}
	switch {
	case state == StateSucceeded && g.params.TimelockDelay == 0:
	case state == StateQueued && current >= p.ETA:
	case state == StateQueued:
		return g.reject(
			span,
			"execute",
			fmt.Errorf("%w: timelock ends at block %d", ErrNotSucceeded, p.ETA),
		)
	default:
		return g.reject(span, "execute", fmt.Errorf("%w: proposal is %s", ErrNotSucceeded, state))
	}
	if err := verifyActionsHash(p, actionsHash); err != nil {
		return g.reject(span, "execute", err)
	}
	g.executing[id] = struct{}{}
	defer delete(g.executing, id)
	updated := p.Clone()
	updated.Executed = true
	payload := ProposalExecutedEvent{ProposalID: id}
	var rec *EventRecord
	startTime := time.Now()
	err = g.config.Executor.Apply(
		ctx,
		g.params.GovernorAddress,
		p.Actions,
		func() error {
			var err error
			rec, err = newEventRecord(current, ProposalExecutedEventType, id, payload)
			if err != nil {
				return err
			}
			return g.config.Store.Commit(&Batch{
				Proposals: []*Proposal{updated},
				Events:    []*EventRecord{rec},
			})
		},
	)
	if err != nil {
		return g.reject(span, "execute", err)
	}
	g.publish(rec, payload)
	if g.metrics != nil {
		g.metrics.proposalsRun.Inc()
		g.metrics.executeLatency.Observe(time.Since(startTime).Seconds())
	}
	g.config.Logger.Info(
		"proposal executed",
		"proposal", id.Hex(),
		"actions", len(p.Actions),
	)
	return nil
}

// ExecuteActions executes the proposal identified by its actions and
// description
func (g *Governor) ExecuteActions(
	ctx context.Context,
	actions []Action,
	description string,
) (ProposalID, error) {
	id, err := HashProposal(actions, HashDescription(description))
	if err != nil {
		return ProposalID{}, fmt.Errorf("hash proposal: %w", err)
	}
	return id, g.Execute(ctx, id, id)
}

// Cancel marks a pending or active proposal as canceled. Only the proposer
// and the admin may cancel.
func (g *Governor) Cancel(
	ctx context.Context,
	caller common.Address,
	id ProposalID,
) error {
	_, span := g.tracer.Start(
		ctx,
		"governance.cancel",
		trace.WithAttributes(attribute.String("proposal.id", id.Hex())),
	)
	defer span.End()
	p, err := g.config.Store.Proposal(id)
	if err != nil {
		return g.reject(span, "cancel", err)
	}
	isAdmin := g.params.Admin != (common.Address{}) && caller == g.params.Admin
	if caller != p.Proposer && !isAdmin {
		return g.reject(span, "cancel", fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex()))
	}
	current := g.CurrentBlock()
	state, err := g.stateOf(p, current)
	if err != nil {
		return g.reject(span, "cancel", err)
	}
	if state != StatePending && state != StateActive {
		return g.reject(span, "cancel", fmt.Errorf("%w: proposal is %s", ErrNotCancelable, state))
	}
	updated := p.Clone()
	updated.Canceled = true
	payload := ProposalCanceledEvent{ProposalID: id}
	if err := g.commit(current, ProposalCanceledEventType, id, payload, []*Proposal{updated}, nil); err != nil {
		return g.reject(span, "cancel", err)
	}
	if g.metrics != nil {
		g.metrics.proposalsCancel.Inc()
	}
	g.config.Logger.Info(
		"proposal canceled",
		"proposal", id.Hex(),
		"caller", caller.Hex(),
	)
	return nil
}

func verifyActionsHash(p *Proposal, actionsHash common.Hash) error {
	expected, err := HashProposal(p.Actions, p.DescriptionHash)
	if err != nil {
		return fmt.Errorf("hash proposal: %w", err)
	}
	if expected != actionsHash {
		return fmt.Errorf(
			"%w: expected %s, got %s",
			ErrHashMismatch,
			expected.Hex(),
			actionsHash.Hex(),
		)
	}
	return nil
}

func (g *Governor) stateOf(p *Proposal, current uint64) (State, error) {
	if _, ok := g.executing[p.ID]; ok {
		return StateExecuted, nil
	}
	return DeriveState(
		p,
		current,
		g.params,
		func() (*uint256.Int, error) {
			return g.quorum.Required(p.SnapshotBlock)
		},
	)
}

func (g *Governor) commit(
	block uint64,
	eventType event.EventType,
	id ProposalID,
	payload any,
	proposals []*Proposal,
	receipts []*Receipt,
) error {
	return g.commitBatch(
		block,
		eventType,
		id,
		payload,
		&Batch{Proposals: proposals, Receipts: receipts},
	)
}

// commitBatch appends the event record to batch, commits it and publishes
// the event
func (g *Governor) commitBatch(
	block uint64,
	eventType event.EventType,
	id ProposalID,
	payload any,
	batch *Batch,
) error {
	rec, err := newEventRecord(block, eventType, id, payload)
	if err != nil {
		return err
	}
	batch.Events = append(batch.Events, rec)
	if err := g.config.Store.Commit(batch); err != nil {
		return fmt.Errorf("commit %s: %w", eventType, err)
	}
	g.publish(rec, payload)
	return nil
}

func (g *Governor) publish(rec *EventRecord, payload any) {
	if g.config.EventBus == nil || rec == nil {
		return
	}
	g.config.EventBus.Publish(
		rec.Type,
		event.NewEvent(
			rec.Type,
			GovernanceEvent{
				Record:  *rec,
				Payload: payload,
			},
		),
	)
}

func (g *Governor) reject(span trace.Span, operation string, err error) error {
	reason := Reason(err)
	span.SetStatus(codes.Error, reason)
	span.RecordError(err)
	if g.metrics != nil {
		g.metrics.rejections.WithLabelValues(operation, reason).Inc()
	}
	g.config.Logger.Debug(
		"call rejected",
		"operation", operation,
		"reason", reason,
		"err", err,
	)
	return err
}
