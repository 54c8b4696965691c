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

package chain

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/blinklabs-io/gavel/event"
)

// HeightStore persists the clock height between restarts
type HeightStore interface {
	LoadHeight() (uint64, bool, error)
	SaveHeight(height uint64) error
}

type ClockConfig struct {
	Logger   *slog.Logger
	EventBus *event.EventBus
	Store    HeightStore
	// InitialHeight is used when the store holds no height yet
	InitialHeight uint64
}

// Clock tracks the ledger block height observed by the governance engine.
// The engine never advances it; block production is external.
type Clock struct {
	mu     sync.RWMutex
	config ClockConfig
	height uint64
}

func NewClock(cfg ClockConfig) (*Clock, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c := &Clock{
		config: cfg,
		height: cfg.InitialHeight,
	}
	if cfg.Store != nil {
		height, ok, err := cfg.Store.LoadHeight()
		if err != nil {
			return nil, fmt.Errorf("load block height: %w", err)
		}
		if ok {
			c.height = height
		}
	}
	return c, nil
}

// Height returns the current block height
func (c *Clock) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// Advance moves the clock forward by count blocks and returns the new height
func (c *Clock) Advance(count uint64) (uint64, error) {
	if count == 0 {
		return 0, ErrZeroAdvance
	}
	c.mu.Lock()
	if c.height > math.MaxUint64-count {
		c.mu.Unlock()
		return 0, ErrHeightOverflow
	}
	newHeight := c.height + count
	if c.config.Store != nil {
		if err := c.config.Store.SaveHeight(newHeight); err != nil {
			c.mu.Unlock()
			return 0, fmt.Errorf("save block height: %w", err)
		}
	}
	c.height = newHeight
	c.mu.Unlock()
	c.config.Logger.Debug(
		"advanced block height",
		"component", "chain",
		"height", newHeight,
	)
	if c.config.EventBus != nil {
		c.config.EventBus.Publish(
			ChainBlockEventType,
			event.NewEvent(
				ChainBlockEventType,
				ChainBlockEvent{
					Height:    newHeight,
					Timestamp: time.Now(),
				},
			),
		)
	}
	return newHeight, nil
}
