// Copyright 2026 The Segmerge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intSource(ordinal int, vals []int) kwaySource[int, int] {
	pos := 0
	src := kwaySource[int, int]{ordinal: ordinal, key: vals[0], val: vals[0]}
	src.next = func() (int, int, bool) {
		pos++
		if pos >= len(vals) {
			return 0, 0, false
		}
		return vals[pos], vals[pos], true
	}
	return src
}

func TestKwayMergeOrdersAllSourcesAscending(t *testing.T) {
	sources := []kwaySource[int, int]{
		intSource(0, []int{1, 4, 9}),
		intSource(1, []int{2, 3}),
		intSource(2, []int{5, 6, 7, 8}),
	}
	var got []int
	kwayMerge(sources, func(a, b int) bool { return a < b }, func(_ int, _ int, v int) {
		got = append(got, v)
	})
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestKwayMergeBreaksTiesByInputOrdinal(t *testing.T) {
	sources := []kwaySource[int, int]{
		intSource(2, []int{5, 5, 5}),
		intSource(0, []int{5, 5}),
		intSource(1, []int{5}),
	}
	var ordinals []int
	kwayMerge(sources, func(a, b int) bool { return a < b }, func(ord int, _ int, _ int) {
		ordinals = append(ordinals, ord)
	})
	// All keys tie at 5, so the comparator falls through to ordinal order
	// every time the frontier is rebuilt: source 0 (2 items) drains first,
	// then source 1 (1 item), then source 2 (3 items).
	require.Equal(t, []int{0, 0, 1, 2, 2, 2}, ordinals)
}

func TestKwayMergeSingleSource(t *testing.T) {
	sources := []kwaySource[int, int]{intSource(0, []int{1, 2, 3})}
	var got []int
	kwayMerge(sources, func(a, b int) bool { return a < b }, func(_ int, _ int, v int) {
		got = append(got, v)
	})
	require.Equal(t, []int{1, 2, 3}, got)
}
