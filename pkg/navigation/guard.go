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

package navigation

import (
	"context"

	"github.com/united-manufacturing-hub/routecore/pkg/depstore"
)

// OutcomeKind tags the result of a guard evaluation.
type OutcomeKind int

const (
	// OutcomeAllow lets the transition proceed past this segment.
	OutcomeAllow OutcomeKind = iota
	// OutcomeDeny aborts the transition attempt.
	OutcomeDeny
	// OutcomeRedirect restarts the attempt with a new target.
	OutcomeRedirect
)

// RedirectTarget names the state a redirecting guard wants instead.
type RedirectTarget struct {
	Name   string
	Params Params
}

// Outcome is the tagged result of a guard evaluation. Using an explicit
// variant keeps the redirect case from being misread as a boolean.
type Outcome struct {
	redirect *RedirectTarget
	kind     OutcomeKind
}

// Allow returns the allowing outcome.
func Allow() Outcome {
	return Outcome{kind: OutcomeAllow}
}

// Deny returns the denying outcome.
func Deny() Outcome {
	return Outcome{kind: OutcomeDeny}
}

// RedirectTo returns a redirecting outcome targeting the given route.
func RedirectTo(name string, params Params) Outcome {
	return Outcome{
		kind:     OutcomeRedirect,
		redirect: &RedirectTarget{Name: name, Params: params.Clone()},
	}
}

// Kind returns the outcome tag.
func (o Outcome) Kind() OutcomeKind {
	return o.kind
}

// Redirect returns the redirect target and whether this outcome is one.
func (o Outcome) Redirect() (RedirectTarget, bool) {
	if o.kind != OutcomeRedirect || o.redirect == nil {
		return RedirectTarget{}, false
	}

	return *o.redirect, true
}

// Guard is the per-transition predicate produced by a factory. It is invoked
// with the state being navigated to and the state being navigated from (nil
// on first navigation). A returned error is normalized by the pipeline to the
// same outcome as Deny, with the error attached to the transition-error
// notification.
type Guard func(ctx context.Context, to, from *State) (Outcome, error)

// GuardFactory binds a guard to a dependency snapshot. It is invoked fresh on
// every transition attempt so the guard always observes the current snapshot.
type GuardFactory func(deps depstore.Snapshot) Guard
