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

// Package router exposes the navigation engine: the lifecycle surface
// (Start/Stop/Dispose), the guarded transition pipeline behind Navigate, and
// the route-table mutation API. Exactly one committed transition is in
// flight at any instant; overlapping attempts are superseded and settle with
// a cancellation error.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"

	loopfsm "github.com/looplab/fsm"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/routecore/internal/fsm"
	"github.com/united-manufacturing-hub/routecore/pkg/depstore"
	"github.com/united-manufacturing-hub/routecore/pkg/eventbus"
	"github.com/united-manufacturing-hub/routecore/pkg/lifecycle"
	"github.com/united-manufacturing-hub/routecore/pkg/logger"
	"github.com/united-manufacturing-hub/routecore/pkg/metrics"
	"github.com/united-manufacturing-hub/routecore/pkg/navigation"
	"github.com/united-manufacturing-hub/routecore/pkg/pathmatch"
	"github.com/united-manufacturing-hub/routecore/pkg/routetable"
	"github.com/united-manufacturing-hub/routecore/pkg/standarderrors"
)

// DefaultMaxRedirects bounds guard-driven redirect chains per attempt.
const DefaultMaxRedirects = 10

// Matcher is the path-matching collaborator. The default implementation is
// pathmatch.Matcher over the router's own table; hosts may substitute their
// own.
type Matcher interface {
	Match(path string) (pathmatch.Match, bool)
	Build(name string, params map[string]string) (string, error)
}

// Config carries the router-level options.
type Config struct {
	// DefaultRoute is navigated to when Start is given no initial path, or
	// when the initial path does not match and AllowNotFound is unset.
	DefaultRoute string
	// DefaultParams are the params used with DefaultRoute.
	DefaultParams navigation.Params
	// AllowNotFound makes Start succeed without a current state when the
	// initial path matches nothing.
	AllowNotFound bool
	// MaxRedirects bounds guard-driven redirect chains. Zero selects
	// DefaultMaxRedirects.
	MaxRedirects int
	// MaxForwardDepth bounds forward-chain resolution. Zero selects
	// routetable.DefaultMaxForwardDepth.
	MaxForwardDepth int
}

// Router composes the route table, the lifecycle registry, the engine FSM
// and the event bus into the exposed navigation surface.
type Router struct {
	log     *zap.SugaredLogger
	plog    *zap.SugaredLogger
	cfg     Config
	engine  *fsm.Engine
	table   *routetable.Table
	guards  *lifecycle.Registry
	bus     *eventbus.Bus
	deps    *depstore.Store
	matcher Matcher

	// generation identifies the authoritative transition attempt; bumping it
	// cancels whatever was in flight.
	generation *atomic.Int64
	// stateID numbers navigation states; it never repeats or decreases.
	stateID *atomic.Int64

	current *navigation.State

	// opMu serializes FSM check-then-send sequences and commits.
	opMu sync.Mutex
	// currentMu protects the canonical current state (single writer, the
	// pipeline commit; unrestricted readers).
	currentMu sync.RWMutex
}

// New creates a stopped router with an empty route table.
func New(cfg Config) *Router {
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	r := &Router{
		cfg:        cfg,
		log:        logger.For(logger.ComponentRouter),
		plog:       logger.For(logger.ComponentPipeline),
		table:      routetable.NewTable(cfg.MaxForwardDepth),
		guards:     lifecycle.NewRegistry(),
		bus:        eventbus.NewBus(),
		deps:       depstore.NewStore(),
		engine:     fsm.NewEngine(logger.For(logger.ComponentEngineFSM)),
		generation: atomic.NewInt64(0),
		stateID:    atomic.NewInt64(0),
	}
	r.matcher = pathmatch.NewMatcher(r.table)

	r.registerEngineCallbacks()

	metrics.InitErrorCounter(metrics.ComponentRouter, "router")

	return r
}

// registerEngineCallbacks wires event emission to the accepted FSM edges.
// The pipeline emits success/error/cancel itself so each attempt settles
// with exactly one of them.
func (r *Router) registerEngineCallbacks() {
	r.engine.AddCallback("after_"+fsm.EventStarted, func(ctx context.Context, ev *loopfsm.Event) {
		r.bus.Publish(eventbus.TopicStart, eventbus.Payload{})
	})

	r.engine.AddCallback("after_"+fsm.EventStop, func(ctx context.Context, ev *loopfsm.Event) {
		r.bus.Publish(eventbus.TopicStop, eventbus.Payload{})
	})

	r.engine.AddCallback("after_"+fsm.EventNavigate, func(ctx context.Context, ev *loopfsm.Event) {
		if len(ev.Args) == 0 {
			return
		}

		if payload, ok := ev.Args[0].(eventbus.Payload); ok {
			r.bus.Publish(eventbus.TopicTransitionStart, payload)
		}
	})
}

// UseMatcher substitutes the path-matching collaborator. Must be called
// before Start.
func (r *Router) UseMatcher(m Matcher) {
	r.matcher = m
}

// SetDependency stores a value for injection into guard factories.
func (r *Router) SetDependency(key string, value any) {
	r.deps.Set(key, value)
}

// Dependencies exposes the dependency store.
func (r *Router) Dependencies() *depstore.Store {
	return r.deps
}

// AddEventListener subscribes to one event topic and returns an unsubscribe
// closure. Handlers run synchronously on the emitting goroutine and must not
// block or call back into the router on the same goroutine.
func (r *Router) AddEventListener(topic eventbus.Topic, handler eventbus.Handler) func() {
	return r.bus.Subscribe(topic, handler)
}

// Current returns the canonical current state, or nil before the first
// committed transition.
func (r *Router) Current() *navigation.State {
	r.currentMu.RLock()
	defer r.currentMu.RUnlock()

	return r.current
}

func (r *Router) setCurrent(state *navigation.State) {
	r.currentMu.Lock()
	defer r.currentMu.Unlock()

	r.current = state
}

// IsStarted reports whether the router has completed its start sequence and
// has not been stopped or disposed.
func (r *Router) IsStarted() bool {
	return r.engine.Is(fsm.StateReady) || r.engine.Is(fsm.StateTransitioning)
}

// EngineState returns the current engine FSM state name.
func (r *Router) EngineState() string {
	return r.engine.Current()
}

// HasRoute reports whether the full route name is registered.
func (r *Router) HasRoute(name string) bool {
	return r.table.HasRoute(name)
}

// AddRoute registers a batch of top-level route definitions. The batch is
// validated as a whole and never partially applied.
func (r *Router) AddRoute(routes ...routetable.Route) error {
	return r.AddRouteUnder("", routes...)
}

// AddRouteUnder registers a batch of route definitions below an existing
// parent route.
func (r *Router) AddRouteUnder(parent string, routes ...routetable.Route) error {
	if r.engine.Is(fsm.StateDisposed) {
		return standarderrors.ErrRouterDisposed
	}

	applied, err := r.table.Add(routes, parent)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentRouter, "router")

		return err
	}

	for _, a := range applied {
		r.registerRouteGuards(a)
	}

	return nil
}

// registerRouteGuards registers the guards a route definition declared.
// Forwarding always wins: a forwarded route's own guards are accepted but
// ignored, with a warning rather than a silent drop.
func (r *Router) registerRouteGuards(a routetable.Applied) {
	hasGuards := a.Route.ActivateGuard != nil || a.Route.DeactivateGuard != nil
	if !hasGuards {
		return
	}

	if a.Route.ForwardTo != "" || a.Route.ForwardToFunc != nil {
		r.log.Warnf("Route %q declares guards but forwards to %q; forwarding wins and the guards are ignored",
			a.FullName, a.Route.ForwardTo)

		return
	}

	if a.Route.ActivateGuard != nil {
		r.guards.AddGuard(lifecycle.KindActivate, a.FullName, a.Route.ActivateGuard, true)
	}

	if a.Route.DeactivateGuard != nil {
		r.guards.AddGuard(lifecycle.KindDeactivate, a.FullName, a.Route.DeactivateGuard, true)
	}
}

// RemoveRoute deletes the named subtree and its guards. It returns false
// when the route is the active route, an ancestor of it, or not registered.
func (r *Router) RemoveRoute(name string) bool {
	if r.engine.Is(fsm.StateDisposed) {
		return false
	}

	activeName := ""
	if cur := r.Current(); cur != nil {
		activeName = cur.Name
	}

	removed, ok := r.table.Remove(name, activeName)
	if !ok {
		return false
	}

	for _, n := range removed {
		r.guards.ClearRoute(n)
	}

	return true
}

// UpdateRoute applies a partial update to one route; see routetable.Patch
// for the field semantics.
func (r *Router) UpdateRoute(name string, patch routetable.Patch) error {
	if r.engine.Is(fsm.StateDisposed) {
		return standarderrors.ErrRouterDisposed
	}

	return r.table.Update(name, patch)
}

// ClearRoutes empties the route table and both guard namespaces. Plugins,
// the dependency store and event subscriptions are untouched.
func (r *Router) ClearRoutes() {
	r.table.Clear()
	r.guards.ClearAll()
}

// AddActivateGuard registers an activation guard factory for a route.
func (r *Router) AddActivateGuard(name string, factory navigation.GuardFactory) error {
	return r.addGuard(lifecycle.KindActivate, name, factory)
}

// AddDeactivateGuard registers a deactivation guard factory for a route.
func (r *Router) AddDeactivateGuard(name string, factory navigation.GuardFactory) error {
	return r.addGuard(lifecycle.KindDeactivate, name, factory)
}

func (r *Router) addGuard(kind lifecycle.Kind, name string, factory navigation.GuardFactory) error {
	if r.engine.Is(fsm.StateDisposed) {
		return standarderrors.ErrRouterDisposed
	}

	if !r.table.HasRoute(name) {
		return &standarderrors.UnknownRouteError{Name: name}
	}

	if r.table.HasForward(name) {
		r.log.Warnf("Route %q forwards elsewhere; forwarding wins and the %s guard is ignored", name, kind)

		return nil
	}

	r.guards.AddGuard(kind, name, factory, false)

	return nil
}

// RemoveActivateGuard removes the activation guard for a route.
func (r *Router) RemoveActivateGuard(name string) {
	r.guards.Clear(lifecycle.KindActivate, name)
}

// RemoveDeactivateGuard removes the deactivation guard for a route.
func (r *Router) RemoveDeactivateGuard(name string) {
	r.guards.Clear(lifecycle.KindDeactivate, name)
}

// Start brings the router to ready and navigates to the initial target: a
// path when the argument starts with "/", a route name otherwise, or the
// configured default route when empty. It settles with the committed state.
func (r *Router) Start(ctx context.Context, initial string) (*navigation.State, error) {
	r.opMu.Lock()

	if r.engine.Is(fsm.StateDisposed) {
		r.opMu.Unlock()

		return nil, standarderrors.ErrRouterDisposed
	}

	if !r.engine.CanSend(fsm.EventStart) {
		r.opMu.Unlock()

		return nil, standarderrors.ErrRouterAlreadyStarted
	}

	// First wiring of the dependency store; flushes guard registrations
	// buffered before now.
	r.guards.Wire(r.deps)

	if err := r.engine.SendEvent(ctx, fsm.EventStart); err != nil {
		r.opMu.Unlock()

		return nil, err
	}

	name, params, err := r.resolveStartTarget(initial)
	if err != nil {
		_ = r.engine.SendEvent(ctx, fsm.EventFail)
		r.opMu.Unlock()

		if r.cfg.AllowNotFound {
			r.log.Warnf("Router started without a current state: %v", err)

			return nil, nil
		}

		r.bus.Publish(eventbus.TopicTransitionError, eventbus.Payload{Err: err})
		metrics.IncErrorCount(metrics.ComponentRouter, "router")

		return nil, err
	}

	if err := r.engine.SendEvent(ctx, fsm.EventStarted); err != nil {
		r.opMu.Unlock()

		return nil, err
	}

	r.opMu.Unlock()

	return r.Navigate(ctx, name, params)
}

// resolveStartTarget maps Start's argument to a route name and params.
func (r *Router) resolveStartTarget(initial string) (string, navigation.Params, error) {
	switch {
	case initial == "":
		if r.cfg.DefaultRoute == "" {
			return "", nil, &standarderrors.UnknownRouteError{Name: ""}
		}

		return r.cfg.DefaultRoute, r.cfg.DefaultParams.Clone(), nil

	case strings.HasPrefix(initial, "/"):
		match, ok := r.matcher.Match(initial)
		if !ok {
			if r.cfg.DefaultRoute != "" && !r.cfg.AllowNotFound {
				return r.cfg.DefaultRoute, r.cfg.DefaultParams.Clone(), nil
			}

			return "", nil, &standarderrors.UnknownRouteError{Name: initial}
		}

		params, err := r.decodeRawParams(match.Name, match.Params)
		if err != nil {
			return "", nil, err
		}

		return match.Name, params, nil

	default:
		return initial, nil, nil
	}
}

// Stop synchronously forces the engine back to idle, cancelling any
// in-flight transition and clearing the current state. Stopping an idle or
// disposed router is a no-op.
func (r *Router) Stop() {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.engine.Is(fsm.StateDisposed) || r.engine.Is(fsm.StateIdle) {
		return
	}

	ctx := context.Background()

	if r.engine.Is(fsm.StateTransitioning) {
		// The in-flight pipeline observes the generation bump and settles
		// with a cancellation; it must not touch the engine afterwards.
		r.generation.Inc()
		_ = r.engine.SendEvent(ctx, fsm.EventCancel)
	}

	if r.engine.CanSend(fsm.EventStop) {
		_ = r.engine.SendEvent(ctx, fsm.EventStop)
	}

	r.setCurrent(nil)
}

// Dispose permanently shuts the router down. Every later call fails with
// ErrRouterDisposed; there is no way back.
func (r *Router) Dispose() {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.engine.Is(fsm.StateDisposed) {
		return
	}

	r.generation.Inc()
	_ = r.engine.SendEvent(context.Background(), fsm.EventDispose)
	r.setCurrent(nil)
}

// Navigate transitions to the named route. It settles with the committed
// state, or with exactly one navigation error. A Navigate issued while a
// previous attempt is still evaluating guards supersedes it: the previous
// caller settles with ErrTransitionCancelled.
func (r *Router) Navigate(ctx context.Context, name string, params navigation.Params, opts ...navigation.Options) (*navigation.State, error) {
	var options navigation.Options
	if len(opts) > 0 {
		options = opts[0]
	}

	if r.engine.Is(fsm.StateDisposed) {
		return nil, standarderrors.ErrRouterDisposed
	}

	p, err := r.newAttempt(ctx, name, params, options)
	if err != nil {
		return nil, err
	}

	return p.run(ctx)
}

// NavigateToPath matches a path and navigates to the matched route.
func (r *Router) NavigateToPath(ctx context.Context, path string, opts ...navigation.Options) (*navigation.State, error) {
	match, ok := r.matcher.Match(path)
	if !ok {
		return nil, &standarderrors.UnknownRouteError{Name: path}
	}

	params, err := r.decodeRawParams(match.Name, match.Params)
	if err != nil {
		return nil, err
	}

	return r.Navigate(ctx, match.Name, params, opts...)
}

// decodeRawParams runs the route's decoder over raw path params, or carries
// them over as strings when no decoder is registered.
func (r *Router) decodeRawParams(name string, raw map[string]string) (navigation.Params, error) {
	if decoder := r.table.DecoderFor(name); decoder != nil {
		params, err := decoder(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: param decoding for %q: %w", standarderrors.ErrTransitionFailed, name, err)
		}

		return params, nil
	}

	params := make(navigation.Params, len(raw))
	for k, v := range raw {
		params[k] = v
	}

	return params, nil
}
