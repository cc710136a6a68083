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

// routecore demo: loads a YAML route declaration, starts the router and
// walks a few transitions so the event stream and metrics can be observed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/routecore/pkg/config"
	"github.com/united-manufacturing-hub/routecore/pkg/depstore"
	"github.com/united-manufacturing-hub/routecore/pkg/eventbus"
	"github.com/united-manufacturing-hub/routecore/pkg/logger"
	"github.com/united-manufacturing-hub/routecore/pkg/metrics"
	"github.com/united-manufacturing-hub/routecore/pkg/navigation"
	"github.com/united-manufacturing-hub/routecore/pkg/router"
)

const defaultConfigPath = "routes.yaml"

func main() {
	// Initialize the global logger first thing
	logger.Initialize()

	log := logger.For(logger.ComponentRouter)
	log.Info("Starting routecore demo...")

	configPath := defaultConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		log.Errorf("Failed to read config %q: %v", configPath, err)
		os.Exit(1)
	}

	cfg, err := config.ParseConfig(data)
	if err != nil {
		log.Errorf("Failed to parse config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Router.MetricsPort > 0 {
		server := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.Router.MetricsPort))
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Errorf("Failed to shutdown metrics server: %v", err)
			}
		}()
	}

	r := router.New(cfg.RouterConfig())
	defer r.Dispose()

	if err := r.AddRoute(cfg.RouteDefinitions()...); err != nil {
		log.Errorf("Failed to register routes: %v", err)
		os.Exit(1)
	}

	// A guard that denies entry into any route carrying custom
	// "requiresSession: true" unless a session is present in the store.
	for _, name := range routesRequiringSession(cfg) {
		if err := r.AddActivateGuard(name, sessionGuard); err != nil {
			log.Errorf("Failed to register session guard for %q: %v", name, err)
			os.Exit(1)
		}
	}

	unsubscribe := r.AddEventListener(eventbus.TopicTransitionSuccess, func(p eventbus.Payload) {
		out, _ := json.Marshal(p.ToState)
		log.Infof("Committed %s", out)
	})
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigs:
			cancel()
		case <-gctx.Done():
		}

		return nil
	})

	g.Go(func() error {
		state, err := r.Start(gctx, "")
		if err != nil {
			return fmt.Errorf("start failed: %w", err)
		}

		if state != nil {
			log.Infof("Started at %s", state.Name)
		}

		// Walk every declared top-level route once.
		for _, rc := range cfg.Routes {
			if gctx.Err() != nil {
				return nil
			}

			if _, err := r.Navigate(gctx, rc.Name, nil); err != nil {
				log.Warnf("Navigation to %q rejected: %v", rc.Name, err)
			}
		}

		cancel()

		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Demo failed: %v", err)
		os.Exit(1)
	}

	r.Stop()
	log.Info("Demo finished")
	_ = logger.Sync()
}

// sessionGuard allows activation only when the dependency store holds a
// session value.
func sessionGuard(deps depstore.Snapshot) navigation.Guard {
	return func(ctx context.Context, to, from *navigation.State) (navigation.Outcome, error) {
		if _, ok := deps.Get("session"); !ok {
			return navigation.RedirectTo("login", nil), nil
		}

		return navigation.Allow(), nil
	}
}

// routesRequiringSession collects declared routes flagged with
// "requiresSession: true" in their custom fields.
func routesRequiringSession(cfg config.FullConfig) []string {
	var names []string

	var walk func(routes []config.RouteConfig, parent string)
	walk = func(routes []config.RouteConfig, parent string) {
		for _, rc := range routes {
			full := rc.Name
			if parent != "" {
				full = parent + "." + rc.Name
			}

			if v, ok := rc.Custom["requiresSession"]; ok {
				if flag, isBool := v.(bool); isBool && flag {
					names = append(names, full)
				}
			}

			walk(rc.Children, full)
		}
	}

	walk(cfg.Routes, "")

	return names
}
