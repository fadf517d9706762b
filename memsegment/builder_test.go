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

package memsegment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nakama-oss/segmerge/segment"
)

func textSchema() *segment.Schema {
	return &segment.Schema{Fields: []segment.FieldEntry{
		{Name: "body", Type: segment.FieldText, Indexed: true, FieldNorms: true, Positions: true},
		{Name: "rank", Type: segment.FieldU64, Fast: true},
	}}
}

func TestBuilderRoundTripsTermsAndPostings(t *testing.T) {
	schema := textSchema()
	b := NewBuilder(schema)

	d0 := b.AddDoc()
	b.WithTerms(d0, "body", "a", "f", "b")
	b.WithSingleValue(d0, "rank", 10)
	b.WithStoredDoc(d0, []byte("doc0"))

	d1 := b.AddDoc()
	b.WithTerms(d1, "body", "b", "c")
	b.WithSingleValue(d1, "rank", 20)
	b.WithStoredDoc(d1, []byte("doc1"))

	seg, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, uint32(2), seg.NumDocs())
	require.Equal(t, segment.DocId(2), seg.MaxDoc())
	require.False(t, seg.HasDeletes())

	idx, err := seg.InvertedIndex("body")
	require.NoError(t, err)
	dict := idx.Dictionary()
	require.Equal(t, segment.TermOrdinal(4), dict.NumTerms()) // a, b, c, f

	it := dict.Iterator()
	var terms []string
	for it.Next() {
		terms = append(terms, string(it.Term()))
	}
	require.Equal(t, []string{"a", "b", "c", "f"}, terms)

	// "b" appears in both docs.
	it = dict.Iterator()
	for it.Next() {
		if string(it.Term()) == "b" {
			pl, err := dict.PostingsList(it.Ordinal(), nil)
			require.NoError(t, err)
			require.Equal(t, uint64(2), pl.DocFreq())
		}
	}

	acc, err := seg.NumericField("rank")
	require.NoError(t, err)
	require.Equal(t, uint64(10), acc.Get(d0))
	require.Equal(t, uint64(20), acc.Get(d1))
	require.Equal(t, uint64(10), acc.MinValue())
	require.Equal(t, uint64(20), acc.MaxValue())

	sr, err := seg.StoreReader()
	require.NoError(t, err)
	it2 := sr.IterRaw(nil)
	payload, ok := it2.Next()
	require.True(t, ok)
	require.Equal(t, []byte("doc0"), payload)
	payload, ok = it2.Next()
	require.True(t, ok)
	require.Equal(t, []byte("doc1"), payload)
	_, ok = it2.Next()
	require.False(t, ok)
}

func TestBuilderDeletesHideDocsFromLiveDocsAndStore(t *testing.T) {
	schema := textSchema()
	b := NewBuilder(schema)
	d0 := b.AddDoc()
	b.WithTerms(d0, "body", "a")
	b.WithStoredDoc(d0, []byte("doc0"))
	d1 := b.AddDoc()
	b.WithTerms(d1, "body", "a")
	b.WithStoredDoc(d1, []byte("doc1"))
	b.Delete(d0)

	seg, err := b.Build()
	require.NoError(t, err)
	require.True(t, seg.HasDeletes())
	require.Equal(t, uint32(1), seg.NumDocs())
	require.Equal(t, []segment.DocId{d1}, seg.LiveDocs())

	sr, err := seg.StoreReader()
	require.NoError(t, err)
	it := sr.IterRaw(seg.DeleteBitmap())
	payload, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, []byte("doc1"), payload)
	_, ok = it.Next()
	require.False(t, ok)
}

func TestMmapPersistAndMapRoundTrips(t *testing.T) {
	b := NewBuilder(textSchema())
	d0 := b.AddDoc()
	b.WithStoredDoc(d0, []byte("payload-zero"))
	seg, err := b.Build()
	require.NoError(t, err)

	mapped, err := PersistAndMap(seg.store, t.TempDir()+"/store.bin")
	require.NoError(t, err)
	defer mapped.Close()

	require.Equal(t, seg.store.raw, mapped.raw)
	require.Equal(t, seg.store.checkpoints, mapped.checkpoints)
}
