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

package gavel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/gavel/api"
	"github.com/blinklabs-io/gavel/chain"
	"github.com/blinklabs-io/gavel/database"
	"github.com/blinklabs-io/gavel/event"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/token"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	clock         *chain.Clock
	ledger        *token.Ledger
	dispatcher    *governance.Dispatcher
	governor      *governance.Governor
	sequencer     *governance.Sequencer
	api           *api.Api
	shutdownFuncs []func(context.Context) error
	config        Config
	tickerStop    chan struct{}
	tickerDone    chan struct{}
	done          chan struct{}
	startOnce     sync.Once
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		eventBus.Close()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Run starts the node and blocks until it is stopped or ctx is done
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

// Start opens the database and starts all components without blocking
func (n *Node) Start(ctx context.Context) error {
	err := errors.New("node already started")
	n.startOnce.Do(func() {
		err = n.start(ctx)
	})
	return err
}

func (n *Node) start(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:      n.config.dataDir,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	// Load block clock
	n.clock, err = chain.NewClock(chain.ClockConfig{
		Logger:        n.config.logger,
		EventBus:      n.eventBus,
		Store:         n.db.Height(),
		InitialHeight: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to load block clock: %w", err)
	}
	// Load token ledger
	n.ledger, err = token.NewLedger(token.LedgerConfig{
		Logger: n.config.logger,
		Store:  n.db.Token(),
		Clock:  n.clock,
		Name:   n.config.tokenName,
		Symbol: n.config.tokenSymbol,
	})
	if err != nil {
		return fmt.Errorf("failed to load token ledger: %w", err)
	}
	applied, err := n.ledger.ApplyGenesis(n.config.genesis)
	if err != nil {
		return fmt.Errorf("failed to apply token genesis: %w", err)
	}
	if applied {
		// Genesis balances become visible to snapshot lookups one block later
		if _, err := n.clock.Advance(1); err != nil {
			return fmt.Errorf("failed to advance past genesis: %w", err)
		}
	}
	// Configure governance
	n.dispatcher = governance.NewDispatcher()
	n.dispatcher.Register(n.config.tokenAddress, n.ledger)
	n.governor, err = governance.NewGovernor(governance.GovernorConfig{
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Store:        n.db.Governance(),
		PowerSource:  n.ledger,
		Executor:     n.dispatcher,
		Params:       n.config.governanceParams,
	})
	if err != nil {
		return fmt.Errorf("failed to load governor: %w", err)
	}
	n.sequencer = governance.NewSequencer(n.governor)
	n.subscribeEvents()
	// Start block ticker
	if n.config.blockInterval > 0 {
		n.tickerStop = make(chan struct{})
		n.tickerDone = make(chan struct{})
		go n.blockTicker(n.config.blockInterval)
	}
	// Configure HTTP API
	if n.config.apiListenAddress != "" {
		n.api = api.New(
			api.Config{ListenAddress: n.config.apiListenAddress},
			n.sequencer,
			n.config.logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	n.config.logger.Info(
		"node started",
		"component", "node",
		"height", n.clock.Height(),
	)
	return nil
}

// subscribeEvents logs every governance event published on the bus
func (n *Node) subscribeEvents() {
	for _, eventType := range []event.EventType{
		governance.ProposalCreatedEventType,
		governance.VoteCastEventType,
		governance.ProposalQueuedEventType,
		governance.ProposalExecutedEventType,
		governance.ProposalCanceledEventType,
	} {
		n.eventBus.SubscribeFunc(eventType, func(evt event.Event) {
			govEvent, ok := evt.Data.(governance.GovernanceEvent)
			if !ok {
				return
			}
			n.config.logger.Debug(
				"governance event",
				"component", "node",
				"type", string(evt.Type),
				"seq", govEvent.Record.Seq,
				"block", govEvent.Record.Block,
				"proposal", govEvent.Record.ProposalID.Hex(),
			)
		})
	}
}

// blockTicker advances the clock through the sequencer so that no engine
// call observes a height change part way through
func (n *Node) blockTicker(interval time.Duration) {
	defer close(n.tickerDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-n.tickerStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := n.sequencer.Do(ctx, func(_ *governance.Governor) error {
				_, err := n.clock.Advance(1)
				return err
			})
			cancel()
			if err != nil {
				if errors.Is(err, governance.ErrSequencerStopped) {
					return
				}
				n.config.logger.Error(
					"failed to advance block height",
					"component", "node",
					"error", err,
				)
			}
		}
	}
}

func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

func (n *Node) Clock() *chain.Clock {
	return n.clock
}

func (n *Node) Ledger() *token.Ledger {
	return n.ledger
}

func (n *Node) Governor() *governance.Governor {
	return n.governor
}

func (n *Node) Sequencer() *governance.Sequencer {
	return n.sequencer
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	if n.tickerStop != nil {
		close(n.tickerStop)
		<-n.tickerDone
	}

	// Phase 2: Drain in-flight governance calls
	n.config.logger.Debug("shutdown phase 2: draining governance calls")

	if n.sequencer != nil {
		n.sequencer.Stop()
	}

	// Phase 3: Close database
	n.config.logger.Debug("shutdown phase 3: closing database")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Close()
	}

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
