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

package segment

import "github.com/RoaringBitmap/roaring"

// Segment is a random-access, read-only view over one immutable on-disk unit
// of indexed data. Modeled on blugelabs/bluge_segment_api's Segment interface:
// one method per capability, nothing assumed about the backing file format.
type Segment interface {
	// NumDocs is the number of live (non-deleted) documents.
	NumDocs() uint32
	// MaxDoc is the largest assigned doc id plus one; the valid doc id
	// range is [0, MaxDoc).
	MaxDoc() DocId
	HasDeletes() bool
	IsAlive(doc DocId) bool
	// DeleteBitmap returns the segment's delete bitset, or nil if it has none.
	DeleteBitmap() *roaring.Bitmap
	// LiveDocs returns live doc ids in ascending order.
	LiveDocs() []DocId

	Schema() *Schema

	FieldNormsReader(field string) (FieldNormsReader, error)
	InvertedIndex(field string) (InvertedIndex, error)
	NumericField(field string) (NumericFieldReader, error)
	MultiNumericField(field string) (MultiNumericFieldReader, error)
	BytesField(field string) (BytesFieldReader, error)

	StoreReader() (StoreReader, error)
}

// FieldNormsReader exposes the 1-byte quantized per-doc length factor for one
// text field.
type FieldNormsReader interface {
	FieldNormID(doc DocId) uint8
	// FieldNorm decodes a quantized id back to its approximate token count.
	FieldNorm(id uint8) uint32
}

// NumericFieldReader is a single-valued u64-backed fast field accessor; it
// also serves as the "lenient u64-coercing accessor" used for sort fields.
type NumericFieldReader interface {
	Get(doc DocId) uint64
	MinValue() uint64
	MaxValue() uint64
}

// MultiNumericFieldReader is a multi-valued u64-backed fast field accessor
// (including hierarchical facets, whose values are term ordinals).
type MultiNumericFieldReader interface {
	NumValues(doc DocId) uint32
	// GetValues appends doc's values to out and returns the result.
	GetValues(doc DocId, out []uint64) []uint64
	TotalNumValues() uint64
}

// BytesFieldReader is a variable-length blob fast field accessor.
type BytesFieldReader interface {
	GetBytes(doc DocId) []byte
}

// InvertedIndex is the per-field entry point into a segment's term
// dictionary and posting lists.
type InvertedIndex interface {
	Dictionary() Dictionary
	// TotalNumTokens is the stored (exact, delete-oblivious) token count for
	// this field.
	TotalNumTokens() uint64
}

// Dictionary is a segment's term dictionary for one field: terms in
// lexicographic byte order, densely numbered by TermOrdinal.
type Dictionary interface {
	Iterator() TermDictionaryIterator
	// NumTerms is one past the largest TermOrdinal in this dictionary.
	NumTerms() TermOrdinal
	// PostingsList resolves a term ordinal to its posting list. reuse, if
	// non-nil, may be reset and returned to avoid an allocation.
	PostingsList(ord TermOrdinal, reuse PostingsList) (PostingsList, error)
}

// TermDictionaryIterator streams a dictionary's terms in lexicographic order.
type TermDictionaryIterator interface {
	// Next advances to the next term, returning false once exhausted.
	Next() bool
	Term() []byte
	Ordinal() TermOrdinal
}

// PostingsList is one term's occurrences across a segment.
type PostingsList interface {
	// DocFreq is the whole-segment document frequency, ignoring deletes.
	DocFreq() uint64
	// DocFreqAlive is the document frequency restricted to docs NOT in
	// alive, which is the segment's delete bitmap (or the full DocFreq if
	// alive is nil or empty).
	DocFreqAlive(alive *roaring.Bitmap) uint64
	// Iterator returns a cursor over this posting list. reuse, if non-nil,
	// may be reset and returned to avoid an allocation. When
	// includePositions is false the cursor's Positions never yields data
	// even if the field indexes positions.
	Iterator(includePositions bool, reuse PostingsIterator) PostingsIterator
}

// PostingsIterator walks one term's postings in ascending doc id order.
type PostingsIterator interface {
	// Doc returns the current doc id, or Terminated before the first
	// Advance or past the end.
	Doc() DocId
	// Advance moves to the next posting and returns its doc id, or
	// Terminated when exhausted.
	Advance() DocId
	TermFreq() uint32
	// Positions appends the current doc's absolute term positions to buf
	// and returns the result. Returns buf[:0] if positions are absent.
	Positions(buf []uint32) []uint32
}

// BlockCheckpoint records one compressed stored-document block's placement.
type BlockCheckpoint struct {
	FirstDoc DocId
	NumDocs  uint32
	Offset   int64
	Length   int64
}

// StoreReader is a segment's stored-document store: compressed blocks of raw
// document payloads indexed by a per-block checkpoint list.
type StoreReader interface {
	// IterRaw returns an iterator over live documents' raw (decompressed)
	// payload bytes, in ascending old-doc-id order. alive is the segment's
	// delete bitmap: docs it contains are skipped. alive may be nil.
	IterRaw(alive *roaring.Bitmap) RawDocIterator
	BlockCheckpoints() []BlockCheckpoint
	Compressor() string
	// RawBlockBytes returns the full backing compressed block region, for
	// zero-copy block stacking. Byte ranges in BlockCheckpoints index into it.
	RawBlockBytes() []byte
}

// RawDocIterator yields one segment's stored document payloads in sequence.
type RawDocIterator interface {
	// Next returns the next payload and true, or (nil, false) when exhausted.
	Next() ([]byte, bool)
}
