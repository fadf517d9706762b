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
	"context"
	"strings"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nakama-oss/segmerge/memsegment"
	"github.com/nakama-oss/segmerge/segment"
)

func scoredBodySchema() *segment.Schema {
	return &segment.Schema{Fields: []segment.FieldEntry{
		{Name: "body", Type: segment.FieldText, Indexed: true, FieldNorms: true, Positions: true},
		{Name: "score", Type: segment.FieldU64, Fast: true},
	}}
}

func addScoredDoc(b *memsegment.Builder, body string, score uint64) segment.DocId {
	d := b.AddDoc()
	b.WithTerms(d, "body", strings.Fields(body)...)
	b.WithSingleValue(d, "score", score)
	b.WithStoredDoc(d, []byte(body))
	return d
}

func postingDocs(t *testing.T, idx segment.InvertedIndex, term string) []segment.DocId {
	t.Helper()
	it := idx.Dictionary().Iterator()
	for it.Next() {
		if string(it.Term()) != term {
			continue
		}
		pl, err := idx.Dictionary().PostingsList(it.Ordinal(), nil)
		require.NoError(t, err)
		pit := pl.Iterator(false, nil)
		var docs []segment.DocId
		for d := pit.Advance(); d != segment.Terminated; d = pit.Advance() {
			docs = append(docs, d)
		}
		return docs
	}
	return nil
}

func hasTerm(idx segment.InvertedIndex, term string) bool {
	it := idx.Dictionary().Iterator()
	for it.Next() {
		if string(it.Term()) == term {
			return true
		}
	}
	return false
}

// TestNoDeletesMergeStacking reproduces spec.md §8's "No-deletes merge"
// scenario: two segments, unsorted, verifying term postings and the score
// fast field at the resulting new doc ids.
func TestNoDeletesMergeStacking(t *testing.T) {
	schema := scoredBodySchema()

	a := memsegment.NewBuilder(schema)
	addScoredDoc(a, "af b", 3)
	addScoredDoc(a, "a b c", 5)
	addScoredDoc(a, "a b c d", 7)
	segA, err := a.Build()
	require.NoError(t, err)

	b := memsegment.NewBuilder(schema)
	addScoredDoc(b, "af b", 11)
	addScoredDoc(b, "a b c g", 13)
	segB, err := b.Build()
	require.NoError(t, err)

	out := memsegment.NewSerializer(schema)
	m := NewMerger(Config{})
	newMaxDoc, progress, err := m.Merge(context.Background(), zap.NewNop(), []segment.Segment{segA, segB}, schema, out)
	require.NoError(t, err)
	require.Equal(t, uint32(5), newMaxDoc)
	require.Equal(t, uint64(5), progress.DocsWritten.Load())

	merged := out.Segment()
	idx, err := merged.InvertedIndex("body")
	require.NoError(t, err)

	require.Equal(t, []segment.DocId{1, 2, 4}, postingDocs(t, idx, "a"))
	require.Equal(t, []segment.DocId{4}, postingDocs(t, idx, "g"))

	scoreAcc, err := merged.NumericField("score")
	require.NoError(t, err)
	for doc, want := range []uint64{3, 5, 7, 11, 13} {
		require.Equal(t, want, scoreAcc.Get(segment.DocId(doc)))
	}

	// Token-count invariant (spec.md §8.8): without deletes, total tokens
	// out equals the sum of total tokens in ("af b"=2, "a b c"=3,
	// "a b c d"=4, "af b"=2, "a b c g"=4).
	require.Equal(t, uint64(2+3+4+2+4), idx.TotalNumTokens())
}

// TestDeletesRemoveATerm reproduces spec.md §8's "Deletes remove a term"
// scenario.
func TestDeletesRemoveATerm(t *testing.T) {
	schema := &segment.Schema{Fields: []segment.FieldEntry{
		{Name: "body", Type: segment.FieldText, Indexed: true, FieldNorms: true},
	}}
	b := memsegment.NewBuilder(schema)
	d0 := b.AddDoc()
	b.WithTerms(d0, "body", "a", "c")
	d1 := b.AddDoc()
	b.WithTerms(d1, "body", "b")
	d2 := b.AddDoc()
	b.WithTerms(d2, "body", "c", "d")
	b.Delete(d0)
	b.Delete(d2)
	seg, err := b.Build()
	require.NoError(t, err)

	out := memsegment.NewSerializer(schema)
	m := NewMerger(Config{})
	newMaxDoc, _, err := m.Merge(context.Background(), zap.NewNop(), []segment.Segment{seg}, schema, out)
	require.NoError(t, err)
	require.Equal(t, uint32(1), newMaxDoc) // only d1 survives

	idx, err := out.Segment().InvertedIndex("body")
	require.NoError(t, err)
	require.False(t, hasTerm(idx, "c"))
	require.False(t, hasTerm(idx, "a"))
	require.False(t, hasTerm(idx, "d"))
	require.True(t, hasTerm(idx, "b"))
	require.Equal(t, []segment.DocId{0}, postingDocs(t, idx, "b"))
}

// TestMultiValuedFastFieldPreservesSequence reproduces spec.md §8's
// "Multi-valued fast field" scenario: merging a single segment with no
// deletes reproduces every document's value sequence unchanged.
func TestMultiValuedFastFieldPreservesSequence(t *testing.T) {
	schema := &segment.Schema{Fields: []segment.FieldEntry{
		{Name: "tags", Type: segment.FieldU64, Fast: true, MultiValued: true},
	}}
	want := [][]uint64{
		{1, 2}, {1, 2, 3}, {4, 5}, {1, 2}, {1, 5},
		{3}, {17}, {20}, {28, 27}, {1000},
	}
	b := memsegment.NewBuilder(schema)
	for _, vs := range want {
		d := b.AddDoc()
		b.WithMultiValues(d, "tags", vs...)
	}
	seg, err := b.Build()
	require.NoError(t, err)

	out := memsegment.NewSerializer(schema)
	m := NewMerger(Config{})
	newMaxDoc, _, err := m.Merge(context.Background(), zap.NewNop(), []segment.Segment{seg}, schema, out)
	require.NoError(t, err)
	require.Equal(t, uint32(len(want)), newMaxDoc)

	acc, err := out.Segment().MultiNumericField("tags")
	require.NoError(t, err)
	for i, expect := range want {
		got := acc.GetValues(segment.DocId(i), nil)
		require.Equal(t, expect, got, "doc %d", i)
	}
}

// TestSortedMergeWithOverlap reproduces spec.md §8's "Sorted merge with
// overlap" scenario: two segments whose sort-field ranges interleave merge
// into one globally sorted sequence.
func TestSortedMergeWithOverlap(t *testing.T) {
	schema := scoredBodySchema()

	a := memsegment.NewBuilder(schema)
	addScoredDoc(a, "x", 1)
	addScoredDoc(a, "x", 5)
	addScoredDoc(a, "x", 9)
	segA, err := a.Build()
	require.NoError(t, err)

	b := memsegment.NewBuilder(schema)
	addScoredDoc(b, "x", 3)
	addScoredDoc(b, "x", 4)
	addScoredDoc(b, "x", 10)
	segB, err := b.Build()
	require.NoError(t, err)

	out := memsegment.NewSerializer(schema)
	m := NewMerger(Config{Sort: &segment.SortConfig{Field: "score", Order: segment.Ascending}})
	newMaxDoc, _, err := m.Merge(context.Background(), zap.NewNop(), []segment.Segment{segA, segB}, schema, out)
	require.NoError(t, err)
	require.Equal(t, uint32(6), newMaxDoc)

	acc, err := out.Segment().NumericField("score")
	require.NoError(t, err)
	var got []uint64
	for d := segment.DocId(0); d < segment.DocId(newMaxDoc); d++ {
		got = append(got, acc.Get(d))
	}
	require.Equal(t, []uint64{1, 3, 4, 5, 9, 10}, got)
}

// TestIdempotenceSingleSegmentNoDeletes reproduces spec.md §8 invariant 9:
// merging one undeleted segment reproduces its semantic content.
func TestIdempotenceSingleSegmentNoDeletes(t *testing.T) {
	schema := scoredBodySchema()
	b := memsegment.NewBuilder(schema)
	addScoredDoc(b, "af b", 3)
	addScoredDoc(b, "a b c", 5)
	seg, err := b.Build()
	require.NoError(t, err)

	out := memsegment.NewSerializer(schema)
	m := NewMerger(Config{})
	newMaxDoc, _, err := m.Merge(context.Background(), zap.NewNop(), []segment.Segment{seg}, schema, out)
	require.NoError(t, err)
	require.Equal(t, seg.NumDocs(), newMaxDoc)

	idx, err := out.Segment().InvertedIndex("body")
	require.NoError(t, err)
	srcIdx, err := seg.InvertedIndex("body")
	require.NoError(t, err)
	require.Equal(t, srcIdx.TotalNumTokens(), idx.TotalNumTokens())
	require.Equal(t, []segment.DocId{1}, postingDocs(t, idx, "a"))

	acc, err := out.Segment().NumericField("score")
	require.NoError(t, err)
	require.Equal(t, uint64(3), acc.Get(0))
	require.Equal(t, uint64(5), acc.Get(1))
}

// TestHierarchicalFacetRemap reproduces spec.md §8 invariant 7: every facet
// fast-field value in the output resolves, through the output term
// dictionary, to the same facet path it named in its own input segment —
// even though the two segments assign that path different local ordinals.
func TestHierarchicalFacetRemap(t *testing.T) {
	schema := &segment.Schema{Fields: []segment.FieldEntry{
		{Name: "category", Type: segment.FieldFacet, Indexed: true, Fast: true, MultiValued: true},
	}}

	// segA's local dictionary is {/a: 0, /c: 1}; segB's is {/b: 0}.
	a := memsegment.NewBuilder(schema)
	da0 := a.AddDoc()
	a.WithTerms(da0, "category", "/a")
	a.WithMultiValues(da0, "category", 0)
	da1 := a.AddDoc()
	a.WithTerms(da1, "category", "/c")
	a.WithMultiValues(da1, "category", 1)
	segA, err := a.Build()
	require.NoError(t, err)

	b := memsegment.NewBuilder(schema)
	db0 := b.AddDoc()
	b.WithTerms(db0, "category", "/b")
	b.WithMultiValues(db0, "category", 0)
	segB, err := b.Build()
	require.NoError(t, err)

	out := memsegment.NewSerializer(schema)
	m := NewMerger(Config{})
	newMaxDoc, _, err := m.Merge(context.Background(), zap.NewNop(), []segment.Segment{segA, segB}, schema, out)
	require.NoError(t, err)
	require.Equal(t, uint32(3), newMaxDoc)

	merged := out.Segment()
	idx, err := merged.InvertedIndex("category")
	require.NoError(t, err)
	termByOrd := map[segment.TermOrdinal]string{}
	// survived tracks which of the output dictionary's term ordinals this
	// merge actually emitted, the way a property test would check invariant
	// 7 without assuming the dictionary is gap-free or densely enumerable.
	survived := bitset.New(uint(newMaxDoc))
	it := idx.Dictionary().Iterator()
	for it.Next() {
		termByOrd[it.Ordinal()] = string(it.Term())
		survived.Set(uint(it.Ordinal()))
	}
	require.Equal(t, map[segment.TermOrdinal]string{0: "/a", 1: "/b", 2: "/c"}, termByOrd)
	require.Equal(t, uint(3), survived.Count())
	for ord := uint(0); ord < 3; ord++ {
		require.True(t, survived.Test(ord), "ordinal %d should have survived the merge", ord)
	}
	require.False(t, survived.Test(3), "no fourth ordinal was emitted")

	facetAcc, err := merged.MultiNumericField("category")
	require.NoError(t, err)
	wantPath := map[segment.DocId]string{0: "/a", 1: "/c", 2: "/b"} // stacking order: segA doc0, segA doc1, segB doc0
	for doc, want := range wantPath {
		vals := facetAcc.GetValues(doc, nil)
		require.Len(t, vals, 1)
		require.Equal(t, want, termByOrd[segment.TermOrdinal(vals[0])], "doc %d", doc)
	}
}
