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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/united-manufacturing-hub/routecore/pkg/logger"
)

const (
	// Component Labels.
	ComponentRouter             = "router"
	ComponentEngineFSM          = "engine_fsm"
	ComponentTransitionPipeline = "transition_pipeline"
	ComponentRouteTable         = "route_table"
	ComponentLifecycleRegistry  = "lifecycle_registry"
	ComponentEventBus           = "event_bus"
)

// Transition result labels.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCancelled = "cancelled"
	ResultRedirect  = "redirect"
)

// Guard kind labels.
const (
	GuardKindActivate   = "activate"
	GuardKindDeactivate = "deactivate"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "umh"
	subsystem = "routecore"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	// Transition outcomes.
	transitionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Total number of transition attempts by result",
		},
		[]string{"instance", "result"},
	)

	// Transition timing.
	transitionTime = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transition_duration_milliseconds",
			Help:      "Time taken by a full transition attempt (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01, // 50th percentile with 1% error
				0.9:  0.01, // 90th percentile with 1% error
				0.95: 0.01, // 95th percentile with 1% error
				0.99: 0.01, // 99th percentile with 1% error
			},
		},
		[]string{"instance"},
	)

	// Guard timing.
	guardTime = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "guard_duration_milliseconds",
			Help:      "Time taken by a single guard evaluation (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.95: 0.01,
				0.99: 0.01,
			},
		},
		[]string{"instance", "kind"},
	)
)

// InitErrorCounter initializes the error counter for a component and instance.
// This ensures the metric exists even if no error has occurred yet.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// IncErrorCount increments the error counter for a component and instance.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// IncTransitionCount increments the transition counter for a given result.
func IncTransitionCount(instance, result string) {
	transitionCounter.WithLabelValues(instance, result).Inc()
}

// ObserveTransitionTime records the duration of a full transition attempt.
func ObserveTransitionTime(instance string, duration time.Duration) {
	transitionTime.WithLabelValues(instance).Observe(float64(duration.Milliseconds()))
}

// ObserveGuardTime records the duration of a single guard evaluation.
func ObserveGuardTime(instance, kind string, duration time.Duration) {
	guardTime.WithLabelValues(instance, kind).Observe(float64(duration.Milliseconds()))
}

// SetupMetricsEndpoint starts an HTTP server to expose metrics.
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.For("metrics").Errorf("Metrics server failed: %v", err)
		}
	}()

	return server
}
