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

package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/united-manufacturing-hub/routecore/internal/fsm"
	"github.com/united-manufacturing-hub/routecore/pkg/depstore"
	"github.com/united-manufacturing-hub/routecore/pkg/eventbus"
	"github.com/united-manufacturing-hub/routecore/pkg/lifecycle"
	"github.com/united-manufacturing-hub/routecore/pkg/metrics"
	"github.com/united-manufacturing-hub/routecore/pkg/navigation"
	"github.com/united-manufacturing-hub/routecore/pkg/routetable"
	"github.com/united-manufacturing-hub/routecore/pkg/standarderrors"
)

// errSuperseded is the pipeline-internal signal that a later attempt or a
// stop took authority away. It never escapes run().
var errSuperseded = errors.New("attempt superseded")

// pipeline orchestrates one navigation attempt. It holds the attempt's
// generation token; before any side-effecting step it verifies the token is
// still the authoritative one.
type pipeline struct {
	router        *Router
	target        *navigation.State
	from          *navigation.State
	options       navigation.Options
	correlationID string
	redirectChain []string
	token         int64
	started       time.Time
}

// newAttempt performs the synchronous admission steps: target resolution,
// the same-state short circuit, the FSM gate, supersession of any in-flight
// attempt, and the transition-start emission. On return the attempt's token
// is the sole authoritative one.
func (r *Router) newAttempt(ctx context.Context, name string, params navigation.Params, options navigation.Options) (*pipeline, error) {
	correlationID := uuid.NewString()

	target, err := r.buildTargetState(name, params, options, false, correlationID)
	if err != nil {
		return nil, err
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	from := r.Current()

	if from != nil && from.SameAs(target) && !options.Force {
		return nil, standarderrors.ErrSameStates
	}

	if r.engine.Is(fsm.StateTransitioning) {
		// Supersede: the in-flight pipeline loses authority and will settle
		// with a cancellation once it observes the bump.
		r.generation.Inc()

		if err := r.engine.SendEvent(ctx, fsm.EventCancel); err != nil {
			return nil, err
		}
	}

	if !r.engine.CanSend(fsm.EventNavigate) {
		switch r.engine.Current() {
		case fsm.StateIdle:
			return nil, standarderrors.ErrRouterNotStarted
		case fsm.StateDisposed:
			return nil, standarderrors.ErrRouterDisposed
		default:
			return nil, standarderrors.ErrTransitionInProgress
		}
	}

	token := r.generation.Inc()

	payload := eventbus.Payload{
		ToState:       target,
		FromState:     from,
		Options:       options,
		CorrelationID: correlationID,
	}

	if err := r.engine.SendEvent(ctx, fsm.EventNavigate, payload); err != nil {
		return nil, err
	}

	return &pipeline{
		router:        r,
		token:         token,
		target:        target,
		from:          from,
		options:       options,
		correlationID: correlationID,
		redirectChain: []string{target.Name},
		started:       time.Now(),
	}, nil
}

// run evaluates guards, follows redirects, and either commits, fails or
// cancels. A redirect restarts the whole procedure with the new target; it
// does not re-emit transition-start.
func (p *pipeline) run(ctx context.Context) (*navigation.State, error) {
	r := p.router

	var deactivate []string

	for {
		var activate []string
		deactivate, activate = r.transitionPath(p.from, p.target)

		// Every factory of this attempt sees the same dependency snapshot.
		snapshot := r.guards.Snapshot()

		_, err := p.runGuards(ctx, lifecycle.KindDeactivate, deactivate, snapshot)
		if err != nil {
			return p.settleFailure(ctx, err)
		}

		redirect, err := p.runGuards(ctx, lifecycle.KindActivate, activate, snapshot)
		if err != nil {
			return p.settleFailure(ctx, err)
		}

		if redirect == nil {
			break
		}

		p.redirectChain = append(p.redirectChain, redirect.Name)

		if len(p.redirectChain)-1 > r.cfg.MaxRedirects {
			return p.settleFailure(ctx, &standarderrors.RedirectLoopError{
				Max:   r.cfg.MaxRedirects,
				Chain: p.redirectChain,
			})
		}

		target, err := r.buildTargetState(redirect.Name, redirect.Params, p.options, true, p.correlationID)
		if err != nil {
			return p.settleFailure(ctx, err)
		}

		r.plog.Debugf("Transition %s redirected to %q", p.correlationID, target.Name)
		metrics.IncTransitionCount("router", metrics.ResultRedirect)

		p.target = target
	}

	// Commit. Nothing may be mutated unless this attempt still holds
	// authority.
	r.opMu.Lock()

	if r.generation.Load() != p.token {
		r.opMu.Unlock()

		return p.settleCancelled()
	}

	r.setCurrent(p.target)

	if err := r.engine.SendEvent(ctx, fsm.EventComplete); err != nil {
		r.opMu.Unlock()

		return nil, err
	}

	r.opMu.Unlock()

	r.bus.Publish(eventbus.TopicTransitionSuccess, p.payload(nil))

	// Auto-cleanup: only segments that actually left the active path, only
	// after a successful commit. A segment that was deactivated and
	// re-entered within this same transition is still active and keeps its
	// guard.
	r.guards.CleanupDeactivated(departed(deactivate, p.target.Name))

	metrics.IncTransitionCount("router", metrics.ResultSuccess)
	metrics.ObserveTransitionTime("router", time.Since(p.started))

	return p.target, nil
}

// departed filters a deactivation list down to the segments absent from the
// committed target's chain.
func departed(deactivated []string, target string) []string {
	active := make(map[string]struct{})
	for _, seg := range routetable.SegmentChain(target) {
		active[seg] = struct{}{}
	}

	var left []string

	for _, seg := range deactivated {
		if _, ok := active[seg]; !ok {
			left = append(left, seg)
		}
	}

	return left
}

// settleFailure sends FAIL and emits transition-error, unless authority was
// already lost, in which case the attempt settles as cancelled instead.
func (p *pipeline) settleFailure(ctx context.Context, cause error) (*navigation.State, error) {
	r := p.router

	if errors.Is(cause, errSuperseded) {
		return p.settleCancelled()
	}

	r.opMu.Lock()

	if r.generation.Load() != p.token {
		r.opMu.Unlock()

		return p.settleCancelled()
	}

	_ = r.engine.SendEvent(ctx, fsm.EventFail)
	r.opMu.Unlock()

	r.bus.Publish(eventbus.TopicTransitionError, p.payload(cause))

	metrics.IncTransitionCount("router", metrics.ResultError)
	metrics.IncErrorCount(metrics.ComponentTransitionPipeline, "router")

	return nil, cause
}

// settleCancelled emits transition-cancel and rejects the caller. The
// canonical state and the guard registry are left untouched; the engine has
// already moved on under the superseding caller.
func (p *pipeline) settleCancelled() (*navigation.State, error) {
	r := p.router

	r.bus.Publish(eventbus.TopicTransitionCancel, p.payload(standarderrors.ErrTransitionCancelled))

	metrics.IncTransitionCount("router", metrics.ResultCancelled)

	return nil, standarderrors.ErrTransitionCancelled
}

func (p *pipeline) payload(err error) eventbus.Payload {
	return eventbus.Payload{
		ToState:       p.target,
		FromState:     p.from,
		Options:       p.options,
		Err:           err,
		CorrelationID: p.correlationID,
	}
}

// runGuards evaluates the guards of one kind over the given segments, in
// order. It returns a redirect target if an activation guard requested one.
// Between guards it re-checks authority so a superseded attempt stops
// promptly instead of evaluating stale guards.
func (p *pipeline) runGuards(
	ctx context.Context,
	kind lifecycle.Kind,
	segments []string,
	snapshot depstore.Snapshot,
) (*navigation.RedirectTarget, error) {
	r := p.router

	base := standarderrors.ErrCannotActivate
	kindLabel := metrics.GuardKindActivate

	if kind == lifecycle.KindDeactivate {
		base = standarderrors.ErrCannotDeactivate
		kindLabel = metrics.GuardKindDeactivate
	}

	for _, segment := range segments {
		if r.generation.Load() != p.token {
			return nil, errSuperseded
		}

		factory := r.guards.FactoryFor(kind, segment)
		if factory == nil {
			continue
		}

		// Factories are invoked fresh on every attempt, never cached.
		guard := factory(snapshot)
		if guard == nil {
			continue
		}

		begin := time.Now()
		outcome, err := invokeGuard(ctx, guard, p.target, p.from)
		metrics.ObserveGuardTime("router", kindLabel, time.Since(begin))

		if err != nil {
			// A failing guard is normalized to a denial; the original error
			// rides along on the transition-error notification.
			return nil, &standarderrors.GuardError{Base: base, Segment: segment, Cause: err}
		}

		switch outcome.Kind() {
		case navigation.OutcomeAllow:

		case navigation.OutcomeDeny:
			return nil, &standarderrors.GuardError{Base: base, Segment: segment}

		case navigation.OutcomeRedirect:
			redirect, _ := outcome.Redirect()

			if kind == lifecycle.KindDeactivate {
				// Deactivation guards are boolean-only; a redirect from one
				// is unsupported and treated as a denial.
				r.plog.Warnf("Deactivation guard of %q returned a redirect to %q; treating as denial",
					segment, redirect.Name)

				return nil, &standarderrors.GuardError{Base: base, Segment: segment}
			}

			return &redirect, nil
		}
	}

	return nil, nil
}

// invokeGuard runs one guard with panic containment: a panicking guard is
// indistinguishable from one that returned an error.
func invokeGuard(ctx context.Context, guard navigation.Guard, to, from *navigation.State) (outcome navigation.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = navigation.Deny()
			err = fmt.Errorf("guard panicked: %v", rec)
		}
	}()

	return guard(ctx, to, from)
}

// buildTargetState resolves a route name through the forward map, merges
// default params, builds the path and mints an immutable state with the next
// identifier.
func (r *Router) buildTargetState(
	name string,
	params navigation.Params,
	options navigation.Options,
	redirected bool,
	correlationID string,
) (*navigation.State, error) {
	resolved, err := r.table.ResolveForward(name, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", standarderrors.ErrTransitionFailed, err)
	}

	if !r.table.HasRoute(resolved) {
		return nil, &standarderrors.UnknownRouteError{Name: name}
	}

	merged := r.table.Defaults(resolved)
	if merged == nil {
		merged = navigation.Params{}
	}
	for k, v := range params {
		merged[k] = v
	}

	raw, err := r.encodeParams(resolved, merged)
	if err != nil {
		return nil, err
	}

	path, err := r.matcher.Build(resolved, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", standarderrors.ErrTransitionFailed, err)
	}

	meta := navigation.Meta{
		Options:       options,
		Redirected:    redirected,
		CorrelationID: correlationID,
	}

	return navigation.NewState(resolved, merged, path, r.stateID.Inc(), meta), nil
}

// encodeParams runs the route's encoder, or renders params as strings when
// no encoder is registered.
func (r *Router) encodeParams(name string, params navigation.Params) (map[string]string, error) {
	if encoder := r.table.EncoderFor(name); encoder != nil {
		raw, err := encoder(params)
		if err != nil {
			return nil, fmt.Errorf("%w: param encoding for %q: %w", standarderrors.ErrTransitionFailed, name, err)
		}

		return raw, nil
	}

	raw := make(map[string]string, len(params))
	for k, v := range params {
		raw[k] = fmt.Sprintf("%v", v)
	}

	return raw, nil
}

// transitionPath computes the path diff between the current and target
// states: an ordered deactivation list (deepest segment first) and an
// ordered activation list (shallowest first). Segments common to both chains
// with identical own parameters are stable and appear in neither list.
func (r *Router) transitionPath(from, to *navigation.State) (deactivate, activate []string) {
	var fromChain []string
	if from != nil {
		fromChain = routetable.SegmentChain(from.Name)
	}

	toChain := routetable.SegmentChain(to.Name)

	stable := 0
	for stable < len(fromChain) && stable < len(toChain) {
		if fromChain[stable] != toChain[stable] {
			break
		}

		if !r.segmentParamsEqual(fromChain[stable], from.Params, to.Params) {
			break
		}

		stable++
	}

	for i := len(fromChain) - 1; i >= stable; i-- {
		deactivate = append(deactivate, fromChain[i])
	}

	activate = append(activate, toChain[stable:]...)

	return deactivate, activate
}

// segmentParamsEqual compares only the parameters the segment's own path
// template declares.
func (r *Router) segmentParamsEqual(segment string, a, b navigation.Params) bool {
	for _, p := range r.table.OwnParamNames(segment) {
		av := navigation.Params{p: a[p]}
		bv := navigation.Params{p: b[p]}

		if !av.Equal(bv) {
			return false
		}
	}

	return true
}
