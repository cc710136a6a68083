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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/united-manufacturing-hub/routecore/pkg/navigation"
	"github.com/united-manufacturing-hub/routecore/pkg/routetable"
)

const sampleYAML = `
router:
  defaultRoute: home
  allowNotFound: true
  maxRedirects: 5
  metricsPort: 9090
routes:
  - name: home
    path: /
  - name: users
    path: /users
    custom:
      requiresSession: true
    children:
      - name: view
        path: /view/:id
        defaultParams:
          id: me
  - name: old-users
    path: /old-users
    forwardTo: users
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "home", cfg.Router.DefaultRoute)
	assert.True(t, cfg.Router.AllowNotFound)
	assert.Equal(t, 5, cfg.Router.MaxRedirects)
	assert.Equal(t, 9090, cfg.Router.MetricsPort)

	require.Len(t, cfg.Routes, 3)
	assert.Equal(t, "users", cfg.Routes[1].Name)
	assert.Equal(t, true, cfg.Routes[1].Custom["requiresSession"])
	require.Len(t, cfg.Routes[1].Children, 1)
	assert.Equal(t, "me", cfg.Routes[1].Children[0].DefaultParams["id"])
	assert.Equal(t, "users", cfg.Routes[2].ForwardTo)
}

func TestParseConfigRejectsStructuralErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "invalid segment name",
			yaml: "routes:\n  - name: a.b\n    path: /x\n",
		},
		{
			name: "nested invalid name",
			yaml: "routes:\n  - name: ok\n    path: /ok\n    children:\n      - name: \"no good\"\n        path: /y\n",
		},
		{
			name: "missing path",
			yaml: "routes:\n  - name: ok\n",
		},
		{
			name: "not yaml",
			yaml: "routes: [unterminated",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRouterConfigConversion(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	require.NoError(t, err)

	rc := cfg.RouterConfig()
	assert.Equal(t, "home", rc.DefaultRoute)
	assert.True(t, rc.AllowNotFound)
	assert.Equal(t, 5, rc.MaxRedirects)
	assert.Zero(t, rc.MaxForwardDepth)
}

func TestRouteDefinitionsRegister(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	require.NoError(t, err)

	table := routetable.NewTable(0)

	_, err = table.Add(cfg.RouteDefinitions(), "")
	require.NoError(t, err)

	assert.True(t, table.HasRoute("users.view"))
	assert.Equal(t, navigation.Params{"id": "me"}, table.Defaults("users.view"))
	assert.Equal(t, map[string]any{"requiresSession": true}, table.CustomFor("users"))

	final, err := table.ResolveForward("old-users", nil)
	require.NoError(t, err)
	assert.Equal(t, "users", final)
}

func TestClone(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	require.NoError(t, err)

	clone := cfg.Clone()
	clone.Routes[1].Custom["requiresSession"] = false
	clone.Router.DefaultRoute = "users"

	assert.Equal(t, true, cfg.Routes[1].Custom["requiresSession"])
	assert.Equal(t, "home", cfg.Router.DefaultRoute)
}
