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

// Package routetable owns the route definition tree, the per-route
// configuration maps and the forward map. All mutation goes through the
// two-phase Add/Remove/Update/Clear operations: the entire batch is validated
// against the current state first, and nothing is written unless validation
// raised no error. A rejected batch leaves the table unchanged.
package routetable

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/routecore/pkg/logger"
	"github.com/united-manufacturing-hub/routecore/pkg/metrics"
	"github.com/united-manufacturing-hub/routecore/pkg/navigation"
	"github.com/united-manufacturing-hub/routecore/pkg/standarderrors"
)

type forwardEntry struct {
	fn     ForwardFunc
	target string
}

// Table is the route table. It is single-writer (the mutation API) and
// unrestricted multi-reader; every write happens under the table lock and is
// a whole-value replacement, so readers never observe a half-updated table.
type Table struct {
	log             *zap.SugaredLogger
	root            *Node
	nodes           map[string]*Node
	decoders        map[string]ParamDecoder
	encoders        map[string]ParamEncoder
	defaults        map[string]navigation.Params
	custom          map[string]map[string]any
	forwards        map[string]forwardEntry
	resolved        map[string]string
	maxForwardDepth int
	mu              sync.RWMutex
}

// NewTable creates an empty table. A maxForwardDepth of zero selects
// DefaultMaxForwardDepth.
func NewTable(maxForwardDepth int) *Table {
	if maxForwardDepth <= 0 {
		maxForwardDepth = DefaultMaxForwardDepth
	}

	t := &Table{
		root:            &Node{},
		nodes:           make(map[string]*Node),
		decoders:        make(map[string]ParamDecoder),
		encoders:        make(map[string]ParamEncoder),
		defaults:        make(map[string]navigation.Params),
		custom:          make(map[string]map[string]any),
		forwards:        make(map[string]forwardEntry),
		resolved:        make(map[string]string),
		maxForwardDepth: maxForwardDepth,
		log:             logger.For(logger.ComponentRouteTable),
	}

	metrics.InitErrorCounter(metrics.ComponentRouteTable, "table")

	return t
}

type flatRoute struct {
	route      Route
	fullName   string
	parentName string
}

// Add validates and applies a batch of route definitions under the given
// parent full name ("" for top level). It returns the flattened list of
// applied routes so the caller can register the batch's guards. On error the
// table is unchanged.
func (t *Table) Add(routes []Route, parent string) ([]Applied, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Phase 1: validate the whole batch against the current state.
	flattened, err := t.validateBatch(routes, parent)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentRouteTable, "table")

		return nil, err
	}

	// Phase 2: apply. Declaration order guarantees parents precede children.
	applied := make([]Applied, 0, len(flattened))

	for _, fr := range flattened {
		parentNode := t.root
		if fr.parentName != "" {
			parentNode = t.nodes[fr.parentName]
		}

		node := &Node{
			parent:   parentNode,
			name:     fr.route.Name,
			fullName: fr.fullName,
			path:     fr.route.Path,
		}
		parentNode.children = append(parentNode.children, node)
		t.nodes[fr.fullName] = node

		if fr.route.Decoder != nil {
			t.decoders[fr.fullName] = fr.route.Decoder
		}

		if fr.route.Encoder != nil {
			t.encoders[fr.fullName] = fr.route.Encoder
		}

		if len(fr.route.DefaultParams) > 0 {
			t.defaults[fr.fullName] = fr.route.DefaultParams.Clone()
		}

		if len(fr.route.Custom) > 0 {
			custom := make(map[string]any, len(fr.route.Custom))
			for k, v := range fr.route.Custom {
				custom[k] = v
			}
			t.custom[fr.fullName] = custom
		}

		if fr.route.ForwardTo != "" || fr.route.ForwardToFunc != nil {
			t.forwards[fr.fullName] = forwardEntry{
				target: fr.route.ForwardTo,
				fn:     fr.route.ForwardToFunc,
			}
		}

		applied = append(applied, Applied{FullName: fr.fullName, Route: fr.route})
	}

	t.rebuildResolved()

	return applied, nil
}

// validateBatch flattens and validates a definition batch. Called with the
// table lock held; reads only.
func (t *Table) validateBatch(routes []Route, parent string) ([]flatRoute, error) {
	if parent != "" {
		if _, ok := t.nodes[parent]; !ok {
			return nil, &standarderrors.UnknownRouteError{Name: parent}
		}
	}

	var flattened []flatRoute

	var flatten func(batch []Route, parentName string) error
	flatten = func(batch []Route, parentName string) error {
		for _, route := range batch {
			if !ValidSegmentName(route.Name) {
				return &standarderrors.RouteDefinitionError{
					Name:   route.Name,
					Reason: "segment name must match [a-zA-Z0-9-_]+",
				}
			}

			if !strings.HasPrefix(route.Path, "/") {
				return &standarderrors.RouteDefinitionError{
					Name:   route.Name,
					Reason: fmt.Sprintf("path template %q must start with /", route.Path),
				}
			}

			fullName := route.Name
			if parentName != "" {
				fullName = parentName + "." + route.Name
			}

			flattened = append(flattened, flatRoute{
				route:      route,
				fullName:   fullName,
				parentName: parentName,
			})

			if err := flatten(route.Children, fullName); err != nil {
				return err
			}
		}

		return nil
	}

	if err := flatten(routes, parent); err != nil {
		return nil, err
	}

	// Duplicate names, within the batch and against existing routes.
	batchNames := make(map[string]struct{}, len(flattened))

	for _, fr := range flattened {
		if _, dup := batchNames[fr.fullName]; dup {
			return nil, &standarderrors.RouteDefinitionError{
				Name:   fr.fullName,
				Reason: "duplicate route name in batch",
			}
		}

		if _, exists := t.nodes[fr.fullName]; exists {
			return nil, &standarderrors.RouteDefinitionError{
				Name:   fr.fullName,
				Reason: "route name already registered",
			}
		}

		batchNames[fr.fullName] = struct{}{}
	}

	// Path collisions among siblings, within the batch and against existing
	// children of the same parent.
	siblingPaths := make(map[string]string) // parent + template -> full name

	for name, node := range t.nodes {
		parentName := ""
		if node.parent != nil {
			parentName = node.parent.fullName
		}
		siblingPaths[parentName+"\x00"+node.path] = name
	}

	for _, fr := range flattened {
		key := fr.parentName + "\x00" + fr.route.Path
		if other, clash := siblingPaths[key]; clash {
			return nil, &standarderrors.RouteDefinitionError{
				Name:   fr.fullName,
				Reason: fmt.Sprintf("path template %q collides with route %q", fr.route.Path, other),
			}
		}
		siblingPaths[key] = fr.fullName
	}

	// Forward-map validation against the hypothetically merged map.
	templates := t.templatesWith(flattened)
	defaults := t.defaultsWith(flattened)
	hypothetical := t.staticForwards()

	for _, fr := range flattened {
		if fr.route.ForwardTo != "" {
			hypothetical[fr.fullName] = fr.route.ForwardTo
		}
	}

	if err := validateForwardMap(hypothetical, t.maxForwardDepth); err != nil {
		return nil, err
	}

	for _, fr := range flattened {
		if fr.route.ForwardTo == "" {
			continue
		}

		if err := t.validateForwardTarget(fr.fullName, hypothetical, templates, defaults); err != nil {
			return nil, err
		}
	}

	return flattened, nil
}

// validateForwardTarget checks that the final forward target of source exists
// and that its required parameters are satisfiable from the source: a target
// requiring parameters absent from the union of the source's own parameters
// and the declared defaults of source and target is rejected at registration
// time, not at navigation time.
func (t *Table) validateForwardTarget(
	source string,
	forwards map[string]string,
	templates map[string]string,
	defaults map[string]navigation.Params,
) error {
	final, _, err := ResolveForward(source, forwards, t.maxForwardDepth)
	if err != nil {
		return err
	}

	if _, ok := templates[final]; !ok {
		return &standarderrors.RouteDefinitionError{
			Name:   source,
			Reason: fmt.Sprintf("forward target %q does not exist", final),
		}
	}

	available := make(map[string]struct{})
	for _, p := range requiredParamsIn(source, templates) {
		available[p] = struct{}{}
	}
	for p := range defaults[source] {
		available[p] = struct{}{}
	}
	for p := range defaults[final] {
		available[p] = struct{}{}
	}

	var missing []string
	for _, p := range requiredParamsIn(final, templates) {
		if _, ok := available[p]; !ok {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)

		return &standarderrors.RouteDefinitionError{
			Name: source,
			Reason: fmt.Sprintf("forward target %q requires parameters not satisfiable from the source: %s",
				final, strings.Join(missing, ", ")),
		}
	}

	return nil
}

// requiredParamsIn returns the parameter names a route needs along its whole
// segment chain, looked up in the given template set.
func requiredParamsIn(name string, templates map[string]string) []string {
	var params []string

	for _, segment := range SegmentChain(name) {
		params = append(params, ParamNames(templates[segment])...)
	}

	return params
}

// templatesWith returns full name -> own path template for existing routes
// plus a pending batch.
func (t *Table) templatesWith(flattened []flatRoute) map[string]string {
	templates := make(map[string]string, len(t.nodes)+len(flattened))

	for name, node := range t.nodes {
		templates[name] = node.path
	}

	for _, fr := range flattened {
		templates[fr.fullName] = fr.route.Path
	}

	return templates
}

// defaultsWith returns full name -> default params for existing routes plus a
// pending batch.
func (t *Table) defaultsWith(flattened []flatRoute) map[string]navigation.Params {
	defaults := make(map[string]navigation.Params, len(t.defaults)+len(flattened))

	for name, params := range t.defaults {
		defaults[name] = params
	}

	for _, fr := range flattened {
		if len(fr.route.DefaultParams) > 0 {
			defaults[fr.fullName] = fr.route.DefaultParams
		}
	}

	return defaults
}

// staticForwards returns a fresh copy of the static part of the forward map.
func (t *Table) staticForwards() map[string]string {
	static := make(map[string]string, len(t.forwards))

	for name, entry := range t.forwards {
		if entry.target != "" {
			static[name] = entry.target
		}
	}

	return static
}

// rebuildResolved fully rebuilds the resolved forward map. It is never
// patched incrementally. Called with the table lock held, always after a
// successful mutation, so resolution cannot fail here.
func (t *Table) rebuildResolved() {
	t.resolved = make(map[string]string, len(t.forwards))
	static := t.staticForwards()

	for name := range static {
		final, _, err := ResolveForward(name, static, t.maxForwardDepth)
		if err != nil {
			t.log.Errorf("Resolved forward map rebuild hit an unvalidated entry %q: %v", name, err)
			metrics.IncErrorCount(metrics.ComponentRouteTable, "table")

			continue
		}

		t.resolved[name] = final
	}
}

// Remove deletes the named subtree together with its configuration, forward
// entries and any forward entries targeting it. It refuses when name is the
// active route or an ancestor of it, and warns and no-ops when name is
// absent. The removed full names are returned so the caller can clear the
// subtree's guards.
func (t *Table) Remove(name, activeRoute string) ([]string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[name]
	if !ok {
		t.log.Warnf("Cannot remove route %q: not registered", name)

		return nil, false
	}

	if activeRoute != "" && IsAncestorOf(name, activeRoute, true) {
		return nil, false
	}

	removed := make([]string, 0, 1)

	var collect func(n *Node)
	collect = func(n *Node) {
		removed = append(removed, n.fullName)
		for _, child := range n.children {
			collect(child)
		}
	}
	collect(node)

	removedSet := make(map[string]struct{}, len(removed))
	for _, r := range removed {
		removedSet[r] = struct{}{}
	}

	parent := node.parent
	for i, child := range parent.children {
		if child == node {
			parent.children = append(parent.children[:i:i], parent.children[i+1:]...)

			break
		}
	}

	for _, r := range removed {
		delete(t.nodes, r)
		delete(t.decoders, r)
		delete(t.encoders, r)
		delete(t.defaults, r)
		delete(t.custom, r)
		delete(t.forwards, r)
	}

	for source, entry := range t.forwards {
		if _, gone := removedSet[entry.target]; gone {
			delete(t.forwards, source)
		}
	}

	t.rebuildResolved()

	return removed, true
}

// Patch is the per-field partial update accepted by Update. Absent fields are
// left unchanged, cleared fields are reset, set fields are replaced.
type Patch struct {
	Path          Opt[string]
	ForwardTo     Opt[string]
	Decoder       Opt[ParamDecoder]
	Encoder       Opt[ParamEncoder]
	DefaultParams Opt[navigation.Params]
	Custom        Opt[map[string]any]
}

// Update applies a partial update to one route. Validation and application
// are phase-separated exactly as in Add: a forward change is checked for
// cycles against a hypothetically merged forward map before anything is
// written.
func (t *Table) Update(name string, patch Patch) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[name]
	if !ok {
		return &standarderrors.UnknownRouteError{Name: name}
	}

	// Phase 1: validate.
	if patch.Path.IsSet() {
		path := patch.Path.Value()
		if !strings.HasPrefix(path, "/") {
			return &standarderrors.RouteDefinitionError{
				Name:   name,
				Reason: fmt.Sprintf("path template %q must start with /", path),
			}
		}

		for _, sibling := range node.parent.children {
			if sibling != node && sibling.path == path {
				return &standarderrors.RouteDefinitionError{
					Name:   name,
					Reason: fmt.Sprintf("path template %q collides with route %q", path, sibling.fullName),
				}
			}
		}
	}

	if patch.ForwardTo.IsSet() {
		hypothetical := t.staticForwards()
		hypothetical[name] = patch.ForwardTo.Value()

		if err := validateForwardMap(hypothetical, t.maxForwardDepth); err != nil {
			return err
		}

		templates := t.templatesWith(nil)
		if patch.Path.IsSet() {
			templates[name] = patch.Path.Value()
		}

		defaults := t.defaultsWith(nil)
		if patch.DefaultParams.IsSet() {
			defaults[name] = patch.DefaultParams.Value()
		}

		if err := t.validateForwardTarget(name, hypothetical, templates, defaults); err != nil {
			return err
		}
	}

	// Phase 2: apply.
	if patch.Path.IsSet() {
		node.path = patch.Path.Value()
	}

	forwardChanged := false

	switch {
	case patch.ForwardTo.IsSet():
		t.forwards[name] = forwardEntry{target: patch.ForwardTo.Value()}
		forwardChanged = true
	case patch.ForwardTo.IsClear():
		delete(t.forwards, name)
		forwardChanged = true
	}

	applyOpt(patch.Decoder, t.decoders, name)
	applyOpt(patch.Encoder, t.encoders, name)

	switch {
	case patch.DefaultParams.IsSet():
		t.defaults[name] = patch.DefaultParams.Value().Clone()
	case patch.DefaultParams.IsClear():
		delete(t.defaults, name)
	}

	switch {
	case patch.Custom.IsSet():
		custom := make(map[string]any, len(patch.Custom.Value()))
		for k, v := range patch.Custom.Value() {
			custom[k] = v
		}
		t.custom[name] = custom
	case patch.Custom.IsClear():
		delete(t.custom, name)
	}

	if forwardChanged {
		t.rebuildResolved()
	}

	return nil
}

func applyOpt[T any](opt Opt[T], m map[string]T, name string) {
	switch {
	case opt.IsSet():
		m[name] = opt.Value()
	case opt.IsClear():
		delete(m, name)
	}
}

// Clear empties the tree, the configuration maps and the forward maps. Guard
// namespaces live in the lifecycle registry and are cleared by the router.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = &Node{}
	t.nodes = make(map[string]*Node)
	t.decoders = make(map[string]ParamDecoder)
	t.encoders = make(map[string]ParamEncoder)
	t.defaults = make(map[string]navigation.Params)
	t.custom = make(map[string]map[string]any)
	t.forwards = make(map[string]forwardEntry)
	t.resolved = make(map[string]string)
}

// HasRoute reports whether a route with the given full name is registered.
func (t *Table) HasRoute(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.nodes[name]

	return ok
}

// Get returns the node with the given full name, or nil.
func (t *Table) Get(name string) *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.nodes[name]
}

// TopLevel returns the top-level nodes in registration order.
func (t *Table) TopLevel() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.root.Children()
}

// Names returns all registered full names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.nodes))
	for name := range t.nodes {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ResolveForward resolves a route name through the forward map, following
// static entries via the resolved cache and invoking dynamic entries with the
// given params. Dynamic chains are bounded by the same depth limit.
func (t *Table) ResolveForward(name string, params navigation.Params) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	current := name
	seen := map[string]struct{}{current: {}}
	chain := []string{current}

	for steps := 0; ; steps++ {
		entry, ok := t.forwards[current]
		if !ok {
			return current, nil
		}

		if steps >= t.maxForwardDepth {
			return "", &standarderrors.DepthExceededError{
				Start:    name,
				MaxDepth: t.maxForwardDepth,
				Chain:    chain,
			}
		}

		var next string
		if entry.fn != nil {
			next = entry.fn(params)
		} else if final, cached := t.resolved[current]; cached {
			// Static chains are pre-resolved; jump straight to the end.
			return final, nil
		} else {
			next = entry.target
		}

		if next == "" || next == current {
			return current, nil
		}

		if _, repeated := seen[next]; repeated {
			return "", &standarderrors.CycleError{
				Repeated: next,
				Chain:    append(chain, next),
			}
		}

		seen[next] = struct{}{}
		chain = append(chain, next)
		current = next
	}
}

// HasForward reports whether the route carries a forward-map entry.
func (t *Table) HasForward(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.forwards[name]

	return ok
}

// Defaults returns a copy of the route's default params, or nil.
func (t *Table) Defaults(name string) navigation.Params {
	t.mu.RLock()
	defer t.mu.RUnlock()

	params, ok := t.defaults[name]
	if !ok {
		return nil
	}

	return params.Clone()
}

// DecoderFor returns the route's param decoder, or nil.
func (t *Table) DecoderFor(name string) ParamDecoder {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.decoders[name]
}

// EncoderFor returns the route's param encoder, or nil.
func (t *Table) EncoderFor(name string) ParamEncoder {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.encoders[name]
}

// CustomFor returns the route's custom fields, or nil.
func (t *Table) CustomFor(name string) map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	custom, ok := t.custom[name]
	if !ok {
		return nil
	}

	out := make(map[string]any, len(custom))
	for k, v := range custom {
		out[k] = v
	}

	return out
}

// OwnParamNames returns the parameter names declared by the route's own path
// template, excluding ancestors.
func (t *Table) OwnParamNames(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, ok := t.nodes[name]
	if !ok {
		return nil
	}

	return ParamNames(node.path)
}

// RequiredParamNames returns the parameter names a route needs along its
// whole segment chain.
func (t *Table) RequiredParamNames(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	templates := make(map[string]string, len(t.nodes))
	for n, node := range t.nodes {
		templates[n] = node.path
	}

	return requiredParamsIn(name, templates)
}

// FullPathTemplate joins the path templates along the route's segment chain.
func (t *Table) FullPathTemplate(name string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.nodes[name]; !ok {
		return "", &standarderrors.UnknownRouteError{Name: name}
	}

	var full string

	for _, segment := range SegmentChain(name) {
		tpl := t.nodes[segment].path
		if tpl == "/" {
			continue
		}
		full += tpl
	}

	if full == "" {
		full = "/"
	}

	return full, nil
}
