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

// Package navigation holds the value types shared by the route table, the
// lifecycle registry and the transition pipeline: navigation states, guard
// outcomes and the guard capability types.
package navigation

import (
	"reflect"

	json "github.com/goccy/go-json"
	"github.com/tiendc/go-deepcopy"
)

// Params holds the decoded parameters of a navigation state.
type Params map[string]any

// Clone returns a deep copy of the parameters. A nil receiver yields an empty
// map so states never alias caller-owned maps.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	if len(p) == 0 {
		return out
	}

	if err := deepcopy.Copy(&out, p); err != nil {
		// Params are plain decoded values; a copy failure here means a guard
		// smuggled in something non-copyable. Fall back to a shallow copy.
		for k, v := range p {
			out[k] = v
		}
	}

	return out
}

// Equal reports whether both parameter sets hold the same keys and values.
func (p Params) Equal(other Params) bool {
	if len(p) != len(other) {
		return false
	}

	for k, v := range p {
		ov, ok := other[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}

	return true
}

// Meta carries how a state came to be: the originating options, whether it
// resulted from a redirect, and the correlation ID of the attempt that
// produced it.
type Meta struct {
	Options       Options `json:"options"`
	Redirected    bool    `json:"redirected"`
	CorrelationID string  `json:"correlationId"`
}

// State is one resolved navigation target: full route name, decoded
// parameters, built path and a monotonically increasing identifier.
// A State is immutable once constructed.
type State struct {
	Name   string `json:"name"`
	Params Params `json:"params"`
	Path   string `json:"path"`
	ID     int64  `json:"id"`
	Meta   Meta   `json:"meta"`
}

// NewState constructs a State, cloning params so the caller cannot mutate the
// state afterwards.
func NewState(name string, params Params, path string, id int64, meta Meta) *State {
	return &State{
		Name:   name,
		Params: params.Clone(),
		Path:   path,
		ID:     id,
		Meta:   meta,
	}
}

// SameAs reports name-and-parameter equality, the identity used by the
// same-state short circuit. IDs and metadata are not compared.
func (s *State) SameAs(other *State) bool {
	if s == nil || other == nil {
		return s == other
	}

	return s.Name == other.Name && s.Params.Equal(other.Params)
}

// String renders the state as compact JSON for logs and demo output.
func (s *State) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return s.Name
	}

	return string(b)
}

// Options are the caller-supplied navigation options.
type Options struct {
	// Force bypasses the same-state short circuit. It never bypasses the
	// one-committed-transition-at-a-time guarantee.
	Force bool `json:"force"`
}
