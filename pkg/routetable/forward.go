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

package routetable

import (
	"github.com/united-manufacturing-hub/routecore/pkg/standarderrors"
)

// DefaultMaxForwardDepth bounds forward-chain resolution. It catches
// pathological configurations without requiring a full cycle.
const DefaultMaxForwardDepth = 100

// ResolveForward repeatedly follows forwards[name] until no entry exists and
// returns the final name together with the full chain walked (starting with
// name itself). A name with no entry resolves to itself. A name reappearing
// during the walk is a CycleError; a walk longer than maxDepth is a
// DepthExceededError.
func ResolveForward(name string, forwards map[string]string, maxDepth int) (string, []string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxForwardDepth
	}

	chain := []string{name}
	seen := map[string]struct{}{name: {}}
	current := name

	for steps := 0; ; steps++ {
		next, ok := forwards[current]
		if !ok {
			return current, chain, nil
		}

		if steps >= maxDepth {
			return "", chain, &standarderrors.DepthExceededError{
				Start:    name,
				MaxDepth: maxDepth,
				Chain:    chain,
			}
		}

		if _, repeated := seen[next]; repeated {
			return "", append(chain, next), &standarderrors.CycleError{
				Repeated: next,
				Chain:    append(chain, next),
			}
		}

		seen[next] = struct{}{}
		chain = append(chain, next)
		current = next
	}
}

// validateForwardMap resolves every entry of a hypothetical forward map,
// surfacing the first cycle or depth overflow. Used by the two-phase
// mutation layer before anything is written.
func validateForwardMap(forwards map[string]string, maxDepth int) error {
	for name := range forwards {
		if _, _, err := ResolveForward(name, forwards, maxDepth); err != nil {
			return err
		}
	}

	return nil
}
