// Copyright 2025 UMH Systems GmbH
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

// Package fsm implements the engine lifecycle state machine. It is the sole
// arbiter of whether a lifecycle or navigation event may be accepted: a pure
// scheduler and gatekeeper. It performs no guard evaluation and no
// route-table access; accepted edges only dispatch the registered callbacks.
package fsm

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/routecore/pkg/metrics"
)

// Engine is the lifecycle/transition state machine.
type Engine struct {
	logger *zap.SugaredLogger

	// fsm is the finite state machine that manages the engine state
	fsm *fsm.FSM

	// Registered "enter_<state>" and "after_<event>" callbacks, for event
	// emission and logging only.
	callbacks map[string]fsm.Callback

	// mu protects check-then-send sequences against concurrent senders
	mu sync.RWMutex
}

// NewEngine creates an Engine in the idle state with the full transition
// table wired.
func NewEngine(logger *zap.SugaredLogger) *Engine {
	e := &Engine{
		callbacks: make(map[string]fsm.Callback),
		logger:    logger,
	}

	events := []fsm.EventDesc{
		{Name: EventStart, Src: []string{StateIdle}, Dst: StateStarting},
		{Name: EventStarted, Src: []string{StateStarting}, Dst: StateReady},
		{Name: EventFail, Src: []string{StateStarting}, Dst: StateReady},
		{Name: EventStop, Src: []string{StateReady}, Dst: StateIdle},
		{Name: EventNavigate, Src: []string{StateReady}, Dst: StateTransitioning},
		{Name: EventComplete, Src: []string{StateTransitioning}, Dst: StateReady},
		{Name: EventCancel, Src: []string{StateTransitioning}, Dst: StateReady},
		{Name: EventFail, Src: []string{StateTransitioning}, Dst: StateReady},

		// Disposal is unconditional from any prior state and absorbing.
		{Name: EventDispose, Src: []string{
			StateIdle, StateStarting, StateReady, StateTransitioning,
		}, Dst: StateDisposed},
	}

	e.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events(events),
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, ev *fsm.Event) {
				if cb, ok := e.callbacks["enter_"+ev.Dst]; ok {
					cb(ctx, ev)
				}
			},
			"after_event": func(ctx context.Context, ev *fsm.Event) {
				if cb, ok := e.callbacks["after_"+ev.Event]; ok {
					cb(ctx, ev)
				}
			},
		},
	)

	e.AddCallback("enter_"+StateDisposed, func(ctx context.Context, ev *fsm.Event) {
		e.logger.Infof("Engine disposed (from %s)", ev.Src)
	})

	metrics.InitErrorCounter(metrics.ComponentEngineFSM, "engine")

	return e
}

// AddCallback registers a callback under "enter_<state>" or "after_<event>".
// Registering again for the same key replaces the previous callback.
func (e *Engine) AddCallback(key string, callback fsm.Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.callbacks[key] = callback
}

// Current returns the current engine state.
func (e *Engine) Current() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.fsm.Current()
}

// Is reports whether the engine is in the given state.
func (e *Engine) Is(state string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.fsm.Is(state)
}

// CanSend is a pure function of the current state: it reports whether the
// event would be accepted, without side effects. The API surface uses it to
// reject obviously-invalid calls synchronously before any asynchronous work
// begins.
func (e *Engine) CanSend(event string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.fsm.Can(event)
}

// SendEvent drives one accepted edge and dispatches its callbacks. Callers
// serialize check-then-send sequences themselves.
func (e *Engine) SendEvent(ctx context.Context, event string, args ...interface{}) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.fsm.Event(ctx, event, args...)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentEngineFSM, "engine")
	}

	return err
}
