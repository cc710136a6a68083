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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentChain(t *testing.T) {
	assert.Nil(t, SegmentChain(""))
	assert.Equal(t, []string{"a"}, SegmentChain("a"))
	assert.Equal(t, []string{"a", "a.b", "a.b.c"}, SegmentChain("a.b.c"))
}

func TestIsAncestorOf(t *testing.T) {
	assert.True(t, IsAncestorOf("a", "a.b.c", false))
	assert.True(t, IsAncestorOf("a.b", "a.b.c", false))
	assert.False(t, IsAncestorOf("a.b.c", "a.b.c", false))
	assert.True(t, IsAncestorOf("a.b.c", "a.b.c", true))

	// Name-prefix overlap without a dot boundary is not ancestry.
	assert.False(t, IsAncestorOf("a.b", "a.bc", true))
	assert.False(t, IsAncestorOf("x", "a.b", true))
}

func TestValidSegmentName(t *testing.T) {
	for _, ok := range []string{"users", "user-list", "user_list", "v2"} {
		assert.True(t, ValidSegmentName(ok), ok)
	}

	for _, bad := range []string{"", "a.b", "a/b", "a b", "ü"} {
		assert.False(t, ValidSegmentName(bad), bad)
	}
}

func TestParamNames(t *testing.T) {
	assert.Nil(t, ParamNames("/users/list"))
	assert.Equal(t, []string{"id"}, ParamNames("/users/view/:id"))
	assert.Equal(t, []string{"orgID", "memberID"}, ParamNames("/:orgID/member/:memberID"))

	// A bare colon segment declares nothing.
	assert.Nil(t, ParamNames("/a/:/b"))
}
