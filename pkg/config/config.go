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

// Package config loads declarative route tables and router options from
// YAML. Guards, decoders and encoders are code, not config; hosts attach
// them after the declared routes are registered.
package config

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/routecore/pkg/logger"
	"github.com/united-manufacturing-hub/routecore/pkg/navigation"
	"github.com/united-manufacturing-hub/routecore/pkg/router"
	"github.com/united-manufacturing-hub/routecore/pkg/routetable"
)

// FullConfig is the top-level YAML document.
type FullConfig struct {
	Router RouterConfig  `yaml:"router"`
	Routes []RouteConfig `yaml:"routes"`
}

// RouterConfig carries the router-level options.
type RouterConfig struct {
	DefaultRoute    string         `yaml:"defaultRoute,omitempty"`
	DefaultParams   map[string]any `yaml:"defaultParams,omitempty"`
	AllowNotFound   bool           `yaml:"allowNotFound,omitempty"`
	MaxRedirects    int            `yaml:"maxRedirects,omitempty"`
	MaxForwardDepth int            `yaml:"maxForwardDepth,omitempty"`
	MetricsPort     int            `yaml:"metricsPort,omitempty"` // Port to expose metrics on; 0 disables the endpoint
}

// RouteConfig is one declared route. Children nest.
type RouteConfig struct {
	DefaultParams map[string]any `yaml:"defaultParams,omitempty"`
	Custom        map[string]any `yaml:"custom,omitempty"`
	Name          string         `yaml:"name"`
	Path          string         `yaml:"path"`
	ForwardTo     string         `yaml:"forwardTo,omitempty"`
	Children      []RouteConfig  `yaml:"children,omitempty"`
}

// ParseConfig unmarshals and validates a YAML document. Structural
// validation (name syntax, path syntax) happens here; semantic validation
// (duplicates, forward cycles) is the route table's job at registration.
func ParseConfig(data []byte) (FullConfig, error) {
	var cfg FullConfig

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FullConfig{}, fmt.Errorf("parsing route config: %w", err)
	}

	var check func(routes []RouteConfig) error
	check = func(routes []RouteConfig) error {
		for _, route := range routes {
			if !routetable.ValidSegmentName(route.Name) {
				return fmt.Errorf("route config: invalid segment name %q", route.Name)
			}

			if route.Path == "" {
				return fmt.Errorf("route config: route %q has no path", route.Name)
			}

			if err := check(route.Children); err != nil {
				return err
			}
		}

		return nil
	}

	if err := check(cfg.Routes); err != nil {
		return FullConfig{}, err
	}

	return cfg, nil
}

// Clone returns a deep copy of the config.
func (c FullConfig) Clone() FullConfig {
	var out FullConfig
	if err := deepcopy.Copy(&out, c); err != nil {
		logger.For(logger.ComponentConfig).Warnf("Deep copy of config failed, returning shallow copy: %v", err)

		return c
	}

	return out
}

// RouterConfig converts the router options into the router's Config.
func (c FullConfig) RouterConfig() router.Config {
	return router.Config{
		DefaultRoute:    c.Router.DefaultRoute,
		DefaultParams:   navigation.Params(c.Router.DefaultParams).Clone(),
		AllowNotFound:   c.Router.AllowNotFound,
		MaxRedirects:    c.Router.MaxRedirects,
		MaxForwardDepth: c.Router.MaxForwardDepth,
	}
}

// RouteDefinitions converts the declared routes into table definitions.
func (c FullConfig) RouteDefinitions() []routetable.Route {
	return convertRoutes(c.Routes)
}

func convertRoutes(routes []RouteConfig) []routetable.Route {
	out := make([]routetable.Route, 0, len(routes))

	for _, rc := range routes {
		out = append(out, routetable.Route{
			Name:          rc.Name,
			Path:          rc.Path,
			ForwardTo:     rc.ForwardTo,
			DefaultParams: navigation.Params(rc.DefaultParams).Clone(),
			Custom:        rc.Custom,
			Children:      convertRoutes(rc.Children),
		})
	}

	return out
}
