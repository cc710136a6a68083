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

// Package pathmatch matches and builds paths over the tree exposed by the
// route table. The grammar is static segments plus ":param" placeholders.
package pathmatch

import (
	"fmt"
	"strings"

	"github.com/united-manufacturing-hub/routecore/pkg/routetable"
	"github.com/united-manufacturing-hub/routecore/pkg/standarderrors"
)

// Match is a successful path match: the full route name and the raw string
// parameters extracted from the path.
type Match struct {
	Params map[string]string
	Name   string
}

// Matcher matches and builds paths against one route table.
type Matcher struct {
	table *routetable.Table
}

// NewMatcher creates a matcher over the given table.
func NewMatcher(table *routetable.Table) *Matcher {
	return &Matcher{table: table}
}

// tokensOf splits a path template or path into segment tokens. "/" yields no
// tokens.
func tokensOf(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}

	return strings.Split(path, "/")
}

// Match resolves a path to a route name and raw parameters. Query strings and
// fragments are ignored. Routes are tried in registration order, depth first;
// the first route whose full template consumes the whole path wins.
func (m *Matcher) Match(path string) (Match, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	tokens := tokensOf(path)

	for _, node := range m.table.TopLevel() {
		if match, ok := matchNode(node, tokens, 0, map[string]string{}); ok {
			return match, true
		}
	}

	return Match{}, false
}

func matchNode(node *routetable.Node, tokens []string, pos int, params map[string]string) (Match, bool) {
	own := tokensOf(node.PathTemplate())
	if pos+len(own) > len(tokens) {
		return Match{}, false
	}

	segParams := make(map[string]string, len(params)+len(own))
	for k, v := range params {
		segParams[k] = v
	}

	for i, tok := range own {
		actual := tokens[pos+i]

		if strings.HasPrefix(tok, ":") && len(tok) > 1 {
			if actual == "" {
				return Match{}, false
			}
			segParams[tok[1:]] = actual

			continue
		}

		if tok != actual {
			return Match{}, false
		}
	}

	next := pos + len(own)
	if next == len(tokens) {
		return Match{Name: node.FullName(), Params: segParams}, true
	}

	for _, child := range node.Children() {
		if match, ok := matchNode(child, tokens, next, segParams); ok {
			return match, true
		}
	}

	return Match{}, false
}

// Build renders the path for a route from raw string parameters. Every
// ":param" in the route's full template must be supplied.
func (m *Matcher) Build(name string, params map[string]string) (string, error) {
	template, err := m.table.FullPathTemplate(name)
	if err != nil {
		return "", err
	}

	tokens := tokensOf(template)
	if len(tokens) == 0 {
		return "/", nil
	}

	built := make([]string, len(tokens))

	for i, tok := range tokens {
		if strings.HasPrefix(tok, ":") && len(tok) > 1 {
			value, ok := params[tok[1:]]
			if !ok || value == "" {
				return "", &standarderrors.RouteDefinitionError{
					Name:   name,
					Reason: fmt.Sprintf("missing parameter %q for path building", tok[1:]),
				}
			}
			built[i] = value

			continue
		}

		built[i] = tok
	}

	return "/" + strings.Join(built, "/"), nil
}
