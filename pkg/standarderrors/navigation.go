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

package standarderrors

import (
	"errors"
	"fmt"
	"strings"
)

// Lifecycle errors. These are raised synchronously by the FSM gate before any
// asynchronous work starts.
var (
	// ErrRouterNotStarted is returned when navigation is requested while the
	// router is still idle.
	ErrRouterNotStarted = errors.New("router not started")

	// ErrRouterAlreadyStarted is returned by Start when the router has already
	// left the idle state.
	ErrRouterAlreadyStarted = errors.New("router already started")

	// ErrTransitionInProgress is returned when navigation is requested while
	// the router start sequence has not yet settled.
	ErrTransitionInProgress = errors.New("transition already in progress")

	// ErrRouterDisposed is returned on any use of a disposed router. This is
	// an invariant violation: it indicates a programming error in the host
	// application and is never recovered from.
	ErrRouterDisposed = errors.New("router has been disposed")
)

// Navigation errors. Each navigate call settles with at most one of these.
var (
	// ErrSameStates is returned when the requested state equals the current
	// one and the force option is not set.
	ErrSameStates = errors.New("navigating to the same state")

	// ErrCannotActivate is the base error for a denied activation guard.
	ErrCannotActivate = errors.New("cannot activate route segment")

	// ErrCannotDeactivate is the base error for a denied deactivation guard.
	ErrCannotDeactivate = errors.New("cannot deactivate route segment")

	// ErrTransitionCancelled is returned to a caller whose transition attempt
	// was superseded by a later navigation or by a stop.
	ErrTransitionCancelled = errors.New("transition cancelled")

	// ErrTransitionFailed is the base error for a transition that failed for a
	// reason other than a guard denial.
	ErrTransitionFailed = errors.New("transition failed")
)

// UnknownRouteError is returned when a route name cannot be resolved against
// the route table.
type UnknownRouteError struct {
	Name string
}

func (e *UnknownRouteError) Error() string {
	return fmt.Sprintf("route not found: %q", e.Name)
}

// GuardError wraps a guard denial or a guard evaluation failure. It carries
// the segment whose guard fired and, if the guard itself failed, the original
// cause. It matches ErrCannotActivate or ErrCannotDeactivate via errors.Is.
type GuardError struct {
	Base    error // ErrCannotActivate or ErrCannotDeactivate
	Segment string
	Cause   error
}

func (e *GuardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %q: %v", e.Base.Error(), e.Segment, e.Cause)
	}

	return fmt.Sprintf("%s %q", e.Base.Error(), e.Segment)
}

func (e *GuardError) Is(target error) bool {
	return target == e.Base
}

func (e *GuardError) Unwrap() error {
	return e.Cause
}

// CycleError is a configuration error: the forward map contains a cycle. It
// carries the name that reappeared and the full chain walked up to that point.
type CycleError struct {
	Repeated string
	Chain    []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("forward cycle detected at %q (chain: %s)",
		e.Repeated, strings.Join(e.Chain, " -> "))
}

// DepthExceededError is a configuration error: a forward chain did not
// terminate within the configured depth bound.
type DepthExceededError struct {
	Start    string
	MaxDepth int
	Chain    []string
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("forward chain from %q exceeded max depth %d (chain: %s)",
		e.Start, e.MaxDepth, strings.Join(e.Chain, " -> "))
}

// RedirectLoopError is a fatal configuration error: a transition attempt was
// redirected more times than the configured maximum. It is distinct from an
// ordinary guard rejection.
type RedirectLoopError struct {
	Max   int
	Chain []string
}

func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("exceeded maximum redirect count %d (chain: %s)",
		e.Max, strings.Join(e.Chain, " -> "))
}

func (e *RedirectLoopError) Is(target error) bool {
	return target == ErrTransitionFailed
}

// RouteDefinitionError is a configuration error raised while validating a
// route batch. The batch it belongs to is never partially applied.
type RouteDefinitionError struct {
	Name   string
	Reason string
}

func (e *RouteDefinitionError) Error() string {
	return fmt.Sprintf("invalid route definition %q: %s", e.Name, e.Reason)
}
