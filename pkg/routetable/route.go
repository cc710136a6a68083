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

package routetable

import (
	"regexp"
	"strings"

	"github.com/united-manufacturing-hub/routecore/pkg/navigation"
)

// ParamDecoder converts raw path parameters into decoded navigation params.
type ParamDecoder func(raw map[string]string) (navigation.Params, error)

// ParamEncoder converts decoded navigation params back into raw path
// parameters for path building.
type ParamEncoder func(params navigation.Params) (map[string]string, error)

// ForwardFunc is the dynamic form of a forward-map entry: it picks the target
// route name from the navigation params at transition time. Dynamic entries
// cannot be cycle-checked at registration; the resolver's depth bound covers
// them at navigation time.
type ForwardFunc func(params navigation.Params) string

// Route is one route definition as supplied to Add. Children are nested
// definitions whose full names derive from this route's.
type Route struct {
	DefaultParams   navigation.Params
	Custom          map[string]any
	Decoder         ParamDecoder
	Encoder         ParamEncoder
	ForwardToFunc   ForwardFunc
	ActivateGuard   navigation.GuardFactory
	DeactivateGuard navigation.GuardFactory
	Name            string
	Path            string
	ForwardTo       string
	Children        []Route
}

// Applied describes one route that an Add batch created, flattened to its
// full name. The router uses it to register the batch's guards after the
// table mutation succeeded.
type Applied struct {
	FullName string
	Route    Route
}

var segmentNameRe = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

// ValidSegmentName reports whether name is a legal local segment name.
func ValidSegmentName(name string) bool {
	return segmentNameRe.MatchString(name)
}

// ParamNames returns the parameter names declared in a path template, in
// order of appearance: "/users/view/:id" yields ["id"].
func ParamNames(template string) []string {
	var names []string

	for _, seg := range strings.Split(template, "/") {
		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			names = append(names, seg[1:])
		}
	}

	return names
}
