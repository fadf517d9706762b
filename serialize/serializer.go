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

// Package serialize defines the write-side capabilities a merge drives to
// produce one output segment. Like package segment on the read side, the
// on-disk encoding behind these interfaces is out of scope; memsegment
// provides a concrete implementation for tests.
package serialize

import "github.com/nakama-oss/segmerge/segment"

// FieldNormsSerializer accepts one fieldnorm byte per doc, in doc id order,
// for a single field.
type FieldNormsSerializer interface {
	AddDoc(fieldNormID uint8) error
	Close() error
}

// SingleValueFastFieldWriter accepts one u64-coercible value per doc, in doc
// id order, for a single-valued numeric field bounded by the (min, max) its
// opener was given (spec.md §6 "new_u64_fast_field").
type SingleValueFastFieldWriter interface {
	AddValue(doc segment.DocId, value uint64) error
	Close() error
}

// MultiValueFastFieldWriter accepts the complete value list for one doc at a
// time, in doc id order, for a multi-valued numeric or facet field (spec.md
// §6 "new_u64_fast_field_with_idx"). An empty slice is valid and still
// advances the offsets stream.
type MultiValueFastFieldWriter interface {
	AddValues(doc segment.DocId, values []uint64) error
	Close() error
}

// BytesFastFieldWriter accepts one variable-length payload per doc, in doc
// id order (spec.md §6 "new_bytes_fast_field_with_idx").
type BytesFastFieldWriter interface {
	AddValue(doc segment.DocId, value []byte) error
	Close() error
}

// TermDictionaryWriter accepts one field's terms and their postings, in
// lexicographic term order.
type TermDictionaryWriter interface {
	// NewTerm begins a new term, in lexicographic order relative to any
	// prior term written to this writer.
	NewTerm(term []byte) error
	// WriteDoc appends one posting to the current term. termFreq is the
	// in-document term frequency; positions are deltas, each from the
	// previous position in the same doc (the first from 0), and may be nil
	// if the field does not index positions.
	WriteDoc(doc segment.DocId, termFreq uint32, positions []uint32) error
	// CloseTerm finalizes the current term's posting list.
	CloseTerm() error
	Close() error
}

// InvertedIndexSerializer is the per-field entry point for writing a term
// dictionary and its posting lists.
type InvertedIndexSerializer interface {
	TermDictionaryWriter() TermDictionaryWriter
}

// StoreWriter accepts stored-document payloads or pre-compressed raw blocks,
// matching the dual stacking-vs-reencode path in merge/stored.go.
type StoreWriter interface {
	// AddDocument appends one re-encoded document's raw payload, letting the
	// writer assign it to whichever block it is currently filling.
	AddDocument(payload []byte) error

	// StackRawBlock appends a pre-compressed block verbatim (zero-copy
	// stacking), valid only when the block's compressor matches this
	// writer's configured compressor.
	StackRawBlock(raw []byte, numDocs uint32) error

	Compressor() string
	Close() error
}

// SegmentSerializer aggregates the per-field and per-stage serializers a
// merge writes through, one call returning each as needed so the merger
// never needs to know the concrete output format.
type SegmentSerializer interface {
	FieldNorms(field string) (FieldNormsSerializer, error)
	// ReopenFieldNorms returns a reader over a field's just-written
	// fieldnorms, addressed by the new (merged) doc id space. The postings
	// stage needs this to attach block-max score metadata while writing
	// posting lists (spec.md 4.7: "open a reader back on the just-written
	// fieldnorms to pass to the posting writer").
	ReopenFieldNorms(field string) (segment.FieldNormsReader, error)

	// NewSingleValueFastField opens a single-valued numeric column bounded
	// by [min, max], determining its bitpack width.
	NewSingleValueFastField(field string, min, max uint64) (SingleValueFastFieldWriter, error)
	// NewMultiValueFastField opens a multi-valued numeric or facet column;
	// max is the largest value the values stream will carry (for a facet
	// field, the largest merged term ordinal).
	NewMultiValueFastField(field string, min, max uint64) (MultiValueFastFieldWriter, error)
	NewBytesFastField(field string) (BytesFastFieldWriter, error)

	// InvertedIndex opens field's term dictionary writer, recording its
	// exact or approximated total token count and the new-doc-id-space
	// fieldnorm reader needed for block-max metadata (spec.md §6
	// "new_field(field, total_num_tokens, fieldnorm_reader)").
	InvertedIndex(field string, totalNumTokens uint64, fieldNorms segment.FieldNormsReader) (InvertedIndexSerializer, error)
	StoreWriter() (StoreWriter, error)

	Close() error
}
