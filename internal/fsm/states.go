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

// Engine state constants
const (
	// StateIdle is the state before the router has been started
	StateIdle = "idle"
	// StateStarting is the state while the start sequence resolves the initial route
	StateStarting = "starting"
	// StateReady is the state in which navigation may be admitted
	StateReady = "ready"
	// StateTransitioning is the state while exactly one transition attempt is authoritative
	StateTransitioning = "transitioning"
	// StateDisposed is the terminal state; it is absorbing and unconditional from any prior state
	StateDisposed = "disposed"
)

// Event constants for state transitions
const (
	// EventStart begins the start sequence
	EventStart = "start"
	// EventStarted completes the start sequence
	EventStarted = "started"
	// EventStop returns the engine to idle
	EventStop = "stop"
	// EventNavigate admits a navigation attempt
	EventNavigate = "navigate"
	// EventComplete commits the in-flight transition
	EventComplete = "complete"
	// EventCancel abandons the in-flight transition
	EventCancel = "cancel"
	// EventFail aborts the in-flight work and returns to ready
	EventFail = "fail"
	// EventDispose permanently shuts the engine down
	EventDispose = "dispose"
)
