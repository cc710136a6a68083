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

// Package lifecycle stores activation and deactivation guard factories per
// route. Guards registered before the dependency store is wired land in a
// pending buffer that is flushed exactly once, in registration order, when
// the store becomes available.
package lifecycle

import (
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/routecore/pkg/depstore"
	"github.com/united-manufacturing-hub/routecore/pkg/logger"
	"github.com/united-manufacturing-hub/routecore/pkg/metrics"
	"github.com/united-manufacturing-hub/routecore/pkg/navigation"
)

// Kind selects between the two guard namespaces.
type Kind string

const (
	// KindActivate names activation guards.
	KindActivate Kind = "activate"
	// KindDeactivate names deactivation guards.
	KindDeactivate Kind = "deactivate"
)

type pendingGuard struct {
	factory        navigation.GuardFactory
	name           string
	kind           Kind
	allowOverwrite bool
}

// Registry holds at most one activation and one deactivation factory per full
// route name. It starts unwired; Wire attaches the dependency store and
// flushes the pending buffer.
type Registry struct {
	log        *zap.SugaredLogger
	deps       *depstore.Store
	activate   map[string]navigation.GuardFactory
	deactivate map[string]navigation.GuardFactory
	pending    []pendingGuard
	wired      bool
	mu         sync.RWMutex
}

// NewRegistry creates an unwired registry.
func NewRegistry() *Registry {
	metrics.InitErrorCounter(metrics.ComponentLifecycleRegistry, "registry")

	return &Registry{
		activate:   make(map[string]navigation.GuardFactory),
		deactivate: make(map[string]navigation.GuardFactory),
		log:        logger.For(logger.ComponentLifecycle),
	}
}

// Wire attaches the dependency store and flushes the pending buffer in
// registration order. Wiring is idempotent: a second call is a no-op.
func (r *Registry) Wire(deps *depstore.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wired {
		return
	}

	r.deps = deps
	r.wired = true

	for _, p := range r.pending {
		r.addLocked(p.kind, p.name, p.factory, p.allowOverwrite)
	}
	r.pending = nil
}

// IsWired reports whether the dependency store has been attached.
func (r *Registry) IsWired() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.wired
}

// Snapshot returns the current dependency snapshot, or nil while unwired.
func (r *Registry) Snapshot() depstore.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.wired {
		return nil
	}

	return r.deps.Snapshot()
}

// AddGuard registers a factory for (kind, name), replacing any existing one.
// Replacing without allowOverwrite emits a non-fatal overwrite notice; the
// replacement happens either way. Before wiring, registrations are buffered.
func (r *Registry) AddGuard(kind Kind, name string, factory navigation.GuardFactory, allowOverwrite bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.wired {
		r.pending = append(r.pending, pendingGuard{
			kind:           kind,
			name:           name,
			factory:        factory,
			allowOverwrite: allowOverwrite,
		})

		return
	}

	r.addLocked(kind, name, factory, allowOverwrite)
}

func (r *Registry) addLocked(kind Kind, name string, factory navigation.GuardFactory, allowOverwrite bool) {
	guards := r.guardsFor(kind)

	if _, exists := guards[name]; exists && !allowOverwrite {
		r.log.Warnf("Overwriting existing %s guard for route %q", kind, name)
		metrics.IncErrorCount(metrics.ComponentLifecycleRegistry, "registry")
	}

	guards[name] = factory
}

// FactoryFor returns the registered factory for (kind, name), or nil. The
// caller invokes it fresh on every transition attempt so the guard observes
// the current dependency snapshot.
func (r *Registry) FactoryFor(kind Kind, name string) navigation.GuardFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.guardsFor(kind)[name]
}

// Clear removes the (kind, name) entry, including a matching buffered
// registration while unwired.
func (r *Registry) Clear(kind Kind, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.wired {
		kept := r.pending[:0]
		for _, p := range r.pending {
			if p.kind != kind || p.name != name {
				kept = append(kept, p)
			}
		}
		r.pending = kept

		return
	}

	delete(r.guardsFor(kind), name)
}

// ClearRoute removes both guard kinds for one route.
func (r *Registry) ClearRoute(name string) {
	r.Clear(KindActivate, name)
	r.Clear(KindDeactivate, name)
}

// ClearAll empties both guard namespaces and the pending buffer. Used when
// the whole route table is reset.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.activate = make(map[string]navigation.GuardFactory)
	r.deactivate = make(map[string]navigation.GuardFactory)
	r.pending = nil
}

// CleanupDeactivated implements the auto-cleanup contract: after a successful
// commit, the deactivation-guard entries of every segment that left the
// active path are deleted. Segments still active, or segments only
// transiently visited by a failed or cancelled attempt, are never touched.
func (r *Registry) CleanupDeactivated(segments []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range segments {
		delete(r.deactivate, name)
	}
}

func (r *Registry) guardsFor(kind Kind) map[string]navigation.GuardFactory {
	if kind == KindDeactivate {
		return r.deactivate
	}

	return r.activate
}
