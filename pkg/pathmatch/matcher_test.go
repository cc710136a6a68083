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

package pathmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/united-manufacturing-hub/routecore/pkg/routetable"
	"github.com/united-manufacturing-hub/routecore/pkg/standarderrors"
)

func newMatcher(t *testing.T) *Matcher {
	t.Helper()

	table := routetable.NewTable(0)

	_, err := table.Add([]routetable.Route{
		{Name: "home", Path: "/"},
		{
			Name: "users",
			Path: "/users",
			Children: []routetable.Route{
				{Name: "list", Path: "/list"},
				{
					Name: "view",
					Path: "/view/:id",
					Children: []routetable.Route{
						{Name: "edit", Path: "/edit"},
					},
				},
			},
		},
		{Name: "org", Path: "/:orgID/settings"},
	}, "")
	require.NoError(t, err)

	return NewMatcher(table)
}

func TestMatch(t *testing.T) {
	matcher := newMatcher(t)

	cases := []struct {
		params map[string]string
		name   string
		path   string
		want   string
		ok     bool
	}{
		{name: "root", path: "/", want: "home", ok: true, params: map[string]string{}},
		{name: "static", path: "/users/list", want: "users.list", ok: true, params: map[string]string{}},
		{name: "param", path: "/users/view/42", want: "users.view", ok: true, params: map[string]string{"id": "42"}},
		{name: "nested under param", path: "/users/view/42/edit", want: "users.view.edit", ok: true, params: map[string]string{"id": "42"}},
		{name: "leading param", path: "/acme/settings", want: "org", ok: true, params: map[string]string{"orgID": "acme"}},
		{name: "query and fragment stripped", path: "/users/view/42?tab=info#top", want: "users.view", ok: true, params: map[string]string{"id": "42"}},
		{name: "partial consumption fails", path: "/users/view/42/unknown", ok: false},
		{name: "intermediate only", path: "/users", want: "users", ok: true, params: map[string]string{}},
		{name: "no match", path: "/nothing/here", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			match, ok := matcher.Match(tc.path)
			require.Equal(t, tc.ok, ok)

			if tc.ok {
				assert.Equal(t, tc.want, match.Name)
				assert.Equal(t, tc.params, match.Params)
			}
		})
	}
}

func TestMatchPrefersRegistrationOrder(t *testing.T) {
	table := routetable.NewTable(0)

	_, err := table.Add([]routetable.Route{
		{Name: "static", Path: "/users/admin"},
		{Name: "dynamic", Path: "/users/:id"},
	}, "")
	require.NoError(t, err)

	matcher := NewMatcher(table)

	match, ok := matcher.Match("/users/admin")
	require.True(t, ok)
	assert.Equal(t, "static", match.Name)

	match, ok = matcher.Match("/users/42")
	require.True(t, ok)
	assert.Equal(t, "dynamic", match.Name)
}

func TestBuild(t *testing.T) {
	matcher := newMatcher(t)

	path, err := matcher.Build("users.view", map[string]string{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "/users/view/42", path)

	path, err = matcher.Build("users.view.edit", map[string]string{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "/users/view/42/edit", path)

	path, err = matcher.Build("home", nil)
	require.NoError(t, err)
	assert.Equal(t, "/", path)

	_, err = matcher.Build("users.view", nil)

	var def *standarderrors.RouteDefinitionError

	require.ErrorAs(t, err, &def)

	_, err = matcher.Build("ghost", nil)

	var unknown *standarderrors.UnknownRouteError

	require.ErrorAs(t, err, &unknown)
}

func TestMatchBuildRoundTrip(t *testing.T) {
	matcher := newMatcher(t)

	match, ok := matcher.Match("/users/view/42/edit")
	require.True(t, ok)

	path, err := matcher.Build(match.Name, match.Params)
	require.NoError(t, err)
	assert.Equal(t, "/users/view/42/edit", path)
}
