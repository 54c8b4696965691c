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
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Target receives proposal action calls. Writes made after Snapshot must
// be undone by RevertToSnapshot.
type Target interface {
	Call(ctx context.Context, from common.Address, value *uint256.Int, payload []byte) error
	Snapshot() int
	RevertToSnapshot(id int) error
	DiscardSnapshot(id int)
}

// ActionExecutor applies a proposal's actions. finalize runs after every
// action succeeded; if it fails, the effects of the actions are undone.
type ActionExecutor interface {
	Apply(
		ctx context.Context,
		from common.Address,
		actions []Action,
		finalize func() error,
	) error
}

// Dispatcher routes actions to registered targets by address
type Dispatcher struct {
	mu      sync.RWMutex
	targets map[common.Address]Target
	order   []common.Address
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		targets: make(map[common.Address]Target),
	}
}

// Register adds or replaces the target at addr
func (d *Dispatcher) Register(addr common.Address, target Target) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.targets[addr]; !ok {
		d.order = append(d.order, addr)
	}
	d.targets[addr] = target
}

func (d *Dispatcher) Target(addr common.Address) (Target, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.targets[addr]
	return t, ok
}

type targetSnapshot struct {
	target Target
	id     int
}

// Apply runs actions in order as a single unit
func (d *Dispatcher) Apply(
	ctx context.Context,
	from common.Address,
	actions []Action,
	finalize func() error,
) error {
	d.mu.RLock()
	snapshots := make([]targetSnapshot, 0, len(d.order))
	for _, addr := range d.order {
		target := d.targets[addr]
		snapshots = append(
			snapshots,
			targetSnapshot{target: target, id: target.Snapshot()},
		)
	}
	targets := make([]Target, len(actions))
	var resolveErr error
	for i, action := range actions {
		target, ok := d.targets[action.Target]
		if !ok {
			resolveErr = fmt.Errorf(
				"%w: action %d: %w: %s",
				ErrActionFailed,
				i,
				ErrUnknownTarget,
				action.Target.Hex(),
			)
			break
		}
		targets[i] = target
	}
	d.mu.RUnlock()
	if resolveErr != nil {
		return revertAll(snapshots, resolveErr)
	}
	for i, action := range actions {
		if err := targets[i].Call(ctx, from, action.Value, action.Payload); err != nil {
			return revertAll(
				snapshots,
				fmt.Errorf("%w: action %d: %w", ErrActionFailed, i, err),
			)
		}
	}
	if finalize != nil {
		if err := finalize(); err != nil {
			return revertAll(snapshots, err)
		}
	}
	for i := len(snapshots) - 1; i >= 0; i-- {
		snapshots[i].target.DiscardSnapshot(snapshots[i].id)
	}
	return nil
}

func revertAll(snapshots []targetSnapshot, cause error) error {
	errs := []error{cause}
	for i := len(snapshots) - 1; i >= 0; i-- {
		if err := snapshots[i].target.RevertToSnapshot(snapshots[i].id); err != nil {
			errs = append(errs, fmt.Errorf("revert target: %w", err))
		}
	}
	return errors.Join(errs...)
}
