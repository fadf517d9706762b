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

	"github.com/nakama-oss/segmerge/memsegment"
	"github.com/nakama-oss/segmerge/segment"
)

// mockStoreWriter records which write path stored.go took, so tests can
// assert the block-stacking heuristic without depending on a specific
// serializer's internal re-encoding behavior.
type mockStoreWriter struct {
	compressor       string
	addDocumentCalls int
	stackedBlocks    int
	stackedDocs      []uint32
}

func (m *mockStoreWriter) AddDocument(payload []byte) error {
	m.addDocumentCalls++
	return nil
}

func (m *mockStoreWriter) StackRawBlock(raw []byte, numDocs uint32) error {
	m.stackedBlocks++
	m.stackedDocs = append(m.stackedDocs, numDocs)
	return nil
}

func (m *mockStoreWriter) Compressor() string { return m.compressor }
func (m *mockStoreWriter) Close() error       { return nil }

func storedDocSchema() *segment.Schema {
	return &segment.Schema{Fields: []segment.FieldEntry{
		{Name: "body", Type: segment.FieldText, Indexed: true},
	}}
}

func TestStoredDocsStackBlocksVerbatimWhenDense(t *testing.T) {
	b := memsegment.NewBuilder(storedDocSchema())
	const numDocs = 100 // 7 checkpoints at docsPerBlock=16, >= 6 of the first 7
	for i := 0; i < numDocs; i++ {
		d := b.AddDoc()
		b.WithStoredDoc(d, []byte{byte(i)})
	}
	seg, err := b.Build()
	require.NoError(t, err)
	require.False(t, seg.HasDeletes())

	p := &plan{
		readers:  []segment.ReaderWithOrdinal{{Reader: seg, Ordinal: 0}},
		stacking: true,
	}
	w := &mockStoreWriter{compressor: "s2"}
	require.NoError(t, mergeStoredDocs(p, w))

	require.Equal(t, 1, w.stackedBlocks)
	require.Equal(t, []uint32{numDocs}, w.stackedDocs)
	require.Equal(t, 0, w.addDocumentCalls)
}

func TestStoredDocsDecodeAndReencodeWhenSparse(t *testing.T) {
	b := memsegment.NewBuilder(storedDocSchema())
	const numDocs = 3 // one checkpoint, below the density heuristic
	for i := 0; i < numDocs; i++ {
		d := b.AddDoc()
		b.WithStoredDoc(d, []byte{byte(i)})
	}
	seg, err := b.Build()
	require.NoError(t, err)

	p := &plan{
		readers:  []segment.ReaderWithOrdinal{{Reader: seg, Ordinal: 0}},
		stacking: true,
	}
	w := &mockStoreWriter{compressor: "s2"}
	require.NoError(t, mergeStoredDocs(p, w))

	require.Equal(t, 0, w.stackedBlocks)
	require.Equal(t, numDocs, w.addDocumentCalls)
}

func TestStoredDocsMismatchedCompressorForcesReencode(t *testing.T) {
	b := memsegment.NewBuilder(storedDocSchema())
	const numDocs = 100
	for i := 0; i < numDocs; i++ {
		d := b.AddDoc()
		b.WithStoredDoc(d, []byte{byte(i)})
	}
	seg, err := b.Build()
	require.NoError(t, err)

	p := &plan{
		readers:  []segment.ReaderWithOrdinal{{Reader: seg, Ordinal: 0}},
		stacking: true,
	}
	w := &mockStoreWriter{compressor: "zstd"}
	require.NoError(t, mergeStoredDocs(p, w))

	require.Equal(t, 0, w.stackedBlocks)
	require.Equal(t, numDocs, w.addDocumentCalls)
}

func TestStoredDocsDeletesForceReencode(t *testing.T) {
	b := memsegment.NewBuilder(storedDocSchema())
	const numDocs = 100
	var first segment.DocId
	for i := 0; i < numDocs; i++ {
		d := b.AddDoc()
		if i == 0 {
			first = d
		}
		b.WithStoredDoc(d, []byte{byte(i)})
	}
	b.Delete(first)
	seg, err := b.Build()
	require.NoError(t, err)
	require.True(t, seg.HasDeletes())

	p := &plan{
		readers:  []segment.ReaderWithOrdinal{{Reader: seg, Ordinal: 0}},
		stacking: true,
	}
	w := &mockStoreWriter{compressor: "s2"}
	require.NoError(t, mergeStoredDocs(p, w))

	require.Equal(t, 0, w.stackedBlocks)
	require.Equal(t, numDocs-1, w.addDocumentCalls)
}
