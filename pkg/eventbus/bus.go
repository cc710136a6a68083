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

// Package eventbus implements the typed publish/subscribe fan-out driven by
// the engine FSM and the transition pipeline. Delivery is synchronous and
// in subscription order; each emission chain is depth-limited so a handler
// that triggers further notifications cannot recurse forever, while
// unrelated publishers on other goroutines are unaffected.
package eventbus

import (
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/routecore/pkg/logger"
	"github.com/united-manufacturing-hub/routecore/pkg/metrics"
	"github.com/united-manufacturing-hub/routecore/pkg/navigation"
)

// Topic identifies one event stream.
type Topic string

const (
	// TopicStart fires when the router finishes starting.
	TopicStart Topic = "start"
	// TopicStop fires when the router is stopped.
	TopicStop Topic = "stop"
	// TopicTransitionStart fires when a navigation attempt is admitted.
	TopicTransitionStart Topic = "transition-start"
	// TopicTransitionSuccess fires when a navigation attempt commits.
	TopicTransitionSuccess Topic = "transition-success"
	// TopicTransitionError fires when a navigation attempt fails.
	TopicTransitionError Topic = "transition-error"
	// TopicTransitionCancel fires when a navigation attempt is superseded.
	TopicTransitionCancel Topic = "transition-cancel"
)

// DefaultMaxPublishDepth bounds re-entrant publishes within one emission
// chain before they are dropped.
const DefaultMaxPublishDepth = 8

// Payload is the value delivered to every handler of a topic.
type Payload struct {
	ToState       *navigation.State
	FromState     *navigation.State
	Options       navigation.Options
	Err           error
	CorrelationID string
}

// Handler receives event payloads. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(Payload)

type subscription struct {
	handler Handler
	id      string
}

// Bus is the event fan-out. The zero value is not usable; use NewBus.
type Bus struct {
	log           *zap.SugaredLogger
	subscriptions map[Topic][]subscription
	depths        map[uint64]int32
	maxDepth      int32
	depthMu       sync.Mutex
	mu            sync.RWMutex
}

// NewBus creates a bus with the default re-entrancy depth limit.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[Topic][]subscription),
		depths:        make(map[uint64]int32),
		maxDepth:      DefaultMaxPublishDepth,
		log:           logger.For(logger.ComponentEventBus),
	}
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// closure. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(topic Topic, handler Handler) func() {
	id := uuid.NewString()

	b.mu.Lock()
	b.subscriptions[topic] = append(b.subscriptions[topic], subscription{
		id:      id,
		handler: handler,
	})
	b.mu.Unlock()

	return func() {
		b.unsubscribe(topic, id)
	}
}

func (b *Bus) unsubscribe(topic Topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[topic]
	for i, sub := range subs {
		if sub.id == id {
			b.subscriptions[topic] = append(subs[:i:i], subs[i+1:]...)

			return
		}
	}
}

// SubscriberCount returns the number of handlers registered for a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscriptions[topic])
}

// Publish delivers the payload to every handler of the topic, in
// subscription order. A publish issued from inside a handler counts against
// the depth limit of its own emission chain; beyond the limit the publish is
// dropped with an error log instead of recursing. Independent publishers on
// other goroutines carry separate chains and never count against each other.
func (b *Bus) Publish(topic Topic, payload Payload) {
	gid := goroutineID()

	b.depthMu.Lock()
	depth := b.depths[gid] + 1
	if depth > b.maxDepth {
		b.depthMu.Unlock()
		b.log.Errorf("Dropping publish of %q: re-entrant publish depth exceeded %d", topic, b.maxDepth)
		metrics.IncErrorCount(metrics.ComponentEventBus, string(topic))

		return
	}
	b.depths[gid] = depth
	b.depthMu.Unlock()

	defer func() {
		b.depthMu.Lock()
		if b.depths[gid] <= 1 {
			delete(b.depths, gid)
		} else {
			b.depths[gid]--
		}
		b.depthMu.Unlock()
	}()

	b.mu.RLock()
	subs := make([]subscription, len(b.subscriptions[topic]))
	copy(subs, b.subscriptions[topic])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(payload)
	}
}

// goroutineID identifies the current emission chain. Synchronous delivery
// keeps a chain on the goroutine that started it, so the goroutine ID from
// the first stack line ("goroutine N [...]") is a stable chain key.
func goroutineID() uint64 {
	var buf [64]byte

	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) < 2 {
		return 0
	}

	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}

	return id
}
