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

import "github.com/google/btree"

// kwayDegree is the branching factor passed to btree.New. The frontier never
// holds more items than there are input streams, so a small degree keeps
// node splits cheap without materially affecting comparison count.
const kwayDegree = 8

// kwaySource is one input stream driving a k-way merge: a current (key,
// value) pair plus a way to pull the next one. ordinal is the stream's fixed
// input-order position, used only to break ties between equal keys.
type kwaySource[K, V any] struct {
	ordinal int
	key     K
	val     V
	next    func() (K, V, bool)
}

type kwayItem[K, V any] struct {
	src  kwaySource[K, V]
	less func(a, b K) bool
}

func (a kwayItem[K, V]) Less(than btree.Item) bool {
	b := than.(kwayItem[K, V])
	if a.less(a.src.key, b.src.key) {
		return true
	}
	if a.less(b.src.key, a.src.key) {
		return false
	}
	return a.src.ordinal < b.src.ordinal
}

// kwayMerge drains sources in ascending key order, invoking visit once per
// (ordinal, key, value) as each becomes the current minimum, then advancing
// that source via its next func. Ties on key are broken by ordinal (lower
// wins), matching the "stable tie-break on input index" requirement shared
// by term-dictionary merging and doc-id mapping construction.
//
// Doc-id mapping construction consumes every visit independently (see
// docidmap.go). Term-dictionary merging does not use this primitive:
// postings.go walks its term cursors with nextTermGroup instead.
func kwayMerge[K, V any](sources []kwaySource[K, V], less func(a, b K) bool, visit func(ordinal int, key K, val V)) {
	tree := btree.New(kwayDegree)
	for _, s := range sources {
		tree.ReplaceOrInsert(kwayItem[K, V]{src: s, less: less})
	}
	for tree.Len() > 0 {
		min := tree.DeleteMin().(kwayItem[K, V])
		visit(min.src.ordinal, min.src.key, min.src.val)
		if k, v, ok := min.src.next(); ok {
			min.src.key, min.src.val = k, v
			tree.ReplaceOrInsert(min)
		}
	}
}
