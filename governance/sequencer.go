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
	"runtime/debug"
	"sync"
)

var (
	ErrSequencerStopped = errors.New("sequencer stopped")
	ErrCallPanicked     = errors.New("sequenced call panicked")
)

type sequencerRequest struct {
	fn   func(*Governor) error
	done chan error
}

// Sequencer applies calls against a Governor one at a time on a single
// worker goroutine
type Sequencer struct {
	gov      *Governor
	reqCh    chan sequencerRequest
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSequencer(gov *Governor) *Sequencer {
	s := &Sequencer{
		gov:    gov,
		reqCh:  make(chan sequencerRequest),
		stopCh: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Sequencer) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case req := <-s.reqCh:
			req.done <- s.apply(req.fn)
		}
	}
}

// apply runs fn and converts a panic into an error so the worker survives
func (s *Sequencer) apply(fn func(*Governor) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.gov.config.Logger.Error(
				"sequenced call panic",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrCallPanicked, r)
		}
	}()
	return fn(s.gov)
}

// Do runs fn on the worker and waits for its result. fn must not call Do.
// A call that was already handed to the worker still completes when ctx
// is canceled.
func (s *Sequencer) Do(ctx context.Context, fn func(*Governor) error) error {
	req := sequencerRequest{
		fn:   fn,
		done: make(chan error, 1),
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return ErrSequencerStopped
	case s.reqCh <- req:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.done:
		return err
	}
}

// Stop waits for the running call to finish and stops the worker
func (s *Sequencer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}
