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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardErrorMatching(t *testing.T) {
	cause := errors.New("session lookup failed")

	err := &GuardError{Base: ErrCannotActivate, Segment: "users.view", Cause: cause}

	assert.True(t, errors.Is(err, ErrCannotActivate))
	assert.False(t, errors.Is(err, ErrCannotDeactivate))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "users.view")
	assert.Contains(t, err.Error(), "session lookup failed")

	denial := &GuardError{Base: ErrCannotDeactivate, Segment: "users"}
	assert.True(t, errors.Is(denial, ErrCannotDeactivate))
	assert.NotContains(t, denial.Error(), "%!")
}

func TestRedirectLoopErrorIsTransitionFailure(t *testing.T) {
	err := &RedirectLoopError{Max: 10, Chain: []string{"a", "b", "a"}}

	assert.True(t, errors.Is(err, ErrTransitionFailed))
	assert.False(t, errors.Is(err, ErrCannotActivate))
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestConfigurationErrorMessages(t *testing.T) {
	var asCycle *CycleError

	cycle := &CycleError{Repeated: "b", Chain: []string{"a", "b", "c", "b"}}
	require.True(t, errors.As(error(cycle), &asCycle))
	assert.Contains(t, cycle.Error(), `"b"`)
	assert.Contains(t, cycle.Error(), "a -> b -> c -> b")

	depth := &DepthExceededError{Start: "a", MaxDepth: 5, Chain: []string{"a", "b"}}
	assert.Contains(t, depth.Error(), "max depth 5")

	unknown := &UnknownRouteError{Name: "ghost"}
	assert.Contains(t, unknown.Error(), `"ghost"`)

	def := &RouteDefinitionError{Name: "x", Reason: "no path"}
	assert.Contains(t, def.Error(), "no path")
}
