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

// Opt is an explicit tristate for patch fields: absent leaves the field
// unchanged, clear resets it, set replaces it. This keeps "not given" and
// "explicitly cleared" from collapsing into one nil.
type Opt[T any] struct {
	value T
	set   bool
	clear bool
}

// Set returns an Opt carrying a replacement value.
func Set[T any](value T) Opt[T] {
	return Opt[T]{value: value, set: true}
}

// Clear returns an Opt that resets the field.
func Clear[T any]() Opt[T] {
	return Opt[T]{clear: true}
}

// IsSet reports whether the Opt carries a replacement value.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// IsClear reports whether the Opt resets the field.
func (o Opt[T]) IsClear() bool {
	return o.clear
}

// IsAbsent reports whether the field should be left unchanged.
func (o Opt[T]) IsAbsent() bool {
	return !o.set && !o.clear
}

// Value returns the replacement value. Only meaningful when IsSet is true.
func (o Opt[T]) Value() T {
	return o.value
}
