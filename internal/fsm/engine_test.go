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

package fsm

import (
	"context"
	"testing"

	loopfsm "github.com/looplab/fsm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"
)

func TestEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Engine Suite")
}

var _ = Describe("Engine", func() {
	var (
		engine *Engine
		ctx    context.Context
	)

	BeforeEach(func() {
		engine = NewEngine(zaptest.NewLogger(GinkgoT()).Sugar())
		ctx = context.Background()
	})

	It("starts in the idle state", func() {
		Expect(engine.Current()).To(Equal(StateIdle))
	})

	Describe("the transition table", func() {
		It("walks the full start/navigate/complete cycle", func() {
			Expect(engine.SendEvent(ctx, EventStart)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateStarting))

			Expect(engine.SendEvent(ctx, EventStarted)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateReady))

			Expect(engine.SendEvent(ctx, EventNavigate)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateTransitioning))

			Expect(engine.SendEvent(ctx, EventComplete)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateReady))
		})

		It("returns to ready on cancel and fail", func() {
			Expect(engine.SendEvent(ctx, EventStart)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventStarted)).To(Succeed())

			Expect(engine.SendEvent(ctx, EventNavigate)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventCancel)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateReady))

			Expect(engine.SendEvent(ctx, EventNavigate)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventFail)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateReady))
		})

		It("treats a failed start as settled", func() {
			Expect(engine.SendEvent(ctx, EventStart)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventFail)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateReady))
		})

		It("stops back to idle from ready", func() {
			Expect(engine.SendEvent(ctx, EventStart)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventStarted)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventStop)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateIdle))
		})

		It("rejects events outside the table", func() {
			Expect(engine.SendEvent(ctx, EventNavigate)).NotTo(Succeed())
			Expect(engine.SendEvent(ctx, EventComplete)).NotTo(Succeed())
			Expect(engine.Current()).To(Equal(StateIdle))
		})
	})

	Describe("CanSend", func() {
		It("is a pure function of the current state", func() {
			Expect(engine.CanSend(EventStart)).To(BeTrue())
			Expect(engine.CanSend(EventNavigate)).To(BeFalse())
			Expect(engine.Current()).To(Equal(StateIdle))

			Expect(engine.SendEvent(ctx, EventStart)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventStarted)).To(Succeed())

			Expect(engine.CanSend(EventStart)).To(BeFalse())
			Expect(engine.CanSend(EventNavigate)).To(BeTrue())

			Expect(engine.SendEvent(ctx, EventNavigate)).To(Succeed())
			Expect(engine.CanSend(EventNavigate)).To(BeFalse())
		})
	})

	Describe("disposal", func() {
		It("is unconditional from any state", func() {
			Expect(engine.SendEvent(ctx, EventDispose)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateDisposed))
		})

		It("is unconditional mid-transition", func() {
			Expect(engine.SendEvent(ctx, EventStart)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventStarted)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventNavigate)).To(Succeed())

			Expect(engine.SendEvent(ctx, EventDispose)).To(Succeed())
			Expect(engine.Current()).To(Equal(StateDisposed))
		})

		It("absorbs every later event", func() {
			Expect(engine.SendEvent(ctx, EventDispose)).To(Succeed())

			for _, event := range []string{
				EventStart, EventStarted, EventStop, EventNavigate,
				EventComplete, EventCancel, EventFail, EventDispose,
			} {
				Expect(engine.CanSend(event)).To(BeFalse(), "event %q must not be accepted after disposal", event)
				Expect(engine.SendEvent(ctx, event)).NotTo(Succeed())
			}

			Expect(engine.Current()).To(Equal(StateDisposed))
		})
	})

	Describe("callbacks", func() {
		It("dispatches enter-state and after-event callbacks", func() {
			var entered, fired []string

			engine.AddCallback("enter_"+StateStarting, func(_ context.Context, ev *loopfsm.Event) {
				entered = append(entered, ev.Dst)
			})
			engine.AddCallback("after_"+EventStarted, func(_ context.Context, ev *loopfsm.Event) {
				fired = append(fired, ev.Event)
			})

			Expect(engine.SendEvent(ctx, EventStart)).To(Succeed())
			Expect(engine.SendEvent(ctx, EventStarted)).To(Succeed())

			Expect(entered).To(Equal([]string{StateStarting}))
			Expect(fired).To(Equal([]string{EventStarted}))
		})

		It("passes event args through to callbacks", func() {
			var got []interface{}

			engine.AddCallback("after_"+EventStart, func(_ context.Context, ev *loopfsm.Event) {
				got = ev.Args
			})

			Expect(engine.SendEvent(ctx, EventStart, "payload", 42)).To(Succeed())
			Expect(got).To(Equal([]interface{}{"payload", 42}))
		})
	})

	It("rejects events on a cancelled context", func() {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(engine.SendEvent(cancelled, EventStart)).NotTo(Succeed())
		Expect(engine.Current()).To(Equal(StateIdle))
	})
})
