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
	"strings"
)

// Node is one named segment in the route tree. Children are owned top-down;
// the parent pointer is a lookup-only back-reference.
type Node struct {
	parent   *Node
	name     string
	fullName string
	path     string
	children []*Node
}

// Name returns the local segment name.
func (n *Node) Name() string {
	return n.name
}

// FullName returns the dotted full name (parent.child).
func (n *Node) FullName() string {
	return n.fullName
}

// PathTemplate returns the node's own path template segment.
func (n *Node) PathTemplate() string {
	return n.path
}

// Parent returns the parent node, or nil for top-level nodes.
func (n *Node) Parent() *Node {
	if n.parent == nil || n.parent.fullName == "" {
		return nil
	}

	return n.parent
}

// Children returns the owned children in registration order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)

	return out
}

// SegmentChain returns the full names of every segment from the top-level
// ancestor down to name itself: "a.b.c" yields ["a", "a.b", "a.b.c"].
func SegmentChain(name string) []string {
	if name == "" {
		return nil
	}

	parts := strings.Split(name, ".")
	chain := make([]string, len(parts))
	for i := range parts {
		chain[i] = strings.Join(parts[:i+1], ".")
	}

	return chain
}

// IsAncestorOf reports whether ancestor is a strict route-name ancestor of
// name (or equal to it when orSelf is set).
func IsAncestorOf(ancestor, name string, orSelf bool) bool {
	if ancestor == name {
		return orSelf
	}

	return strings.HasPrefix(name, ancestor+".")
}
