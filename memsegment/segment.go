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

// Package memsegment is a small, real, in-memory implementation of
// package segment's reader interfaces and package serialize's writer
// interfaces: FST term dictionaries, roaring delete bitmaps, and a
// heap-backed stored-document store of s2-compressed blocks (which
// MmappedStore can persist and map back). It exists to build
// fixtures for merge tests and to drive cmd/mergebench; it is not a
// production on-disk format (spec.md and SPEC_FULL.md leave the real format
// out of scope).
package memsegment

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/nakama-oss/segmerge/segment"
)

// Segment is a complete, immutable in-memory segment.
type Segment struct {
	schema  *segment.Schema
	maxDoc  segment.DocId
	deletes *roaring.Bitmap // nil means no deletes

	fieldNorms map[string][]uint8 // field -> one byte per doc

	dicts map[string]*dictionary // field -> term dictionary + postings

	single map[string][]uint64   // field -> one value per doc
	multi  map[string][][]uint64 // field -> values per doc (facet ordinals or plain)
	bytes  map[string][][]byte   // field -> payload per doc

	totalTokens map[string]uint64

	store *store
}

func (s *Segment) NumDocs() uint32 {
	if s.deletes == nil {
		return uint32(s.maxDoc)
	}
	return uint32(s.maxDoc) - uint32(s.deletes.GetCardinality())
}

func (s *Segment) MaxDoc() segment.DocId { return s.maxDoc }

func (s *Segment) HasDeletes() bool { return s.deletes != nil && !s.deletes.IsEmpty() }

func (s *Segment) IsAlive(doc segment.DocId) bool {
	if s.deletes == nil {
		return true
	}
	return !s.deletes.Contains(uint32(doc))
}

func (s *Segment) DeleteBitmap() *roaring.Bitmap { return s.deletes }

func (s *Segment) LiveDocs() []segment.DocId {
	live := make([]segment.DocId, 0, s.NumDocs())
	for d := segment.DocId(0); d < s.maxDoc; d++ {
		if s.IsAlive(d) {
			live = append(live, d)
		}
	}
	return live
}

func (s *Segment) Schema() *segment.Schema { return s.schema }

func (s *Segment) FieldNormsReader(field string) (segment.FieldNormsReader, error) {
	norms, ok := s.fieldNorms[field]
	if !ok {
		return nil, segment.NewErrorf(segment.ErrSchemaError, "no fieldnorms for field %q", field)
	}
	return fieldNormsReader{norms: norms}, nil
}

func (s *Segment) InvertedIndex(field string) (segment.InvertedIndex, error) {
	d, ok := s.dicts[field]
	if !ok {
		return nil, segment.NewErrorf(segment.ErrSchemaError, "field %q is not indexed", field)
	}
	return invertedIndex{dict: d, totalTokens: s.totalTokens[field]}, nil
}

func (s *Segment) NumericField(field string) (segment.NumericFieldReader, error) {
	vals, ok := s.single[field]
	if !ok {
		return nil, segment.NewErrorf(segment.ErrSchemaError, "field %q has no single-valued fast field", field)
	}
	return singleValueReader{vals: vals, deletes: s.deletes}, nil
}

func (s *Segment) MultiNumericField(field string) (segment.MultiNumericFieldReader, error) {
	vals, ok := s.multi[field]
	if !ok {
		return nil, segment.NewErrorf(segment.ErrSchemaError, "field %q has no multi-valued fast field", field)
	}
	return multiValueReader{vals: vals}, nil
}

func (s *Segment) BytesField(field string) (segment.BytesFieldReader, error) {
	vals, ok := s.bytes[field]
	if !ok {
		return nil, segment.NewErrorf(segment.ErrSchemaError, "field %q has no bytes fast field", field)
	}
	return bytesValueReader{vals: vals}, nil
}

func (s *Segment) StoreReader() (segment.StoreReader, error) {
	if s.store == nil {
		return nil, segment.NewError(segment.ErrSchemaError, "segment has no stored-document store")
	}
	return s.store, nil
}

type fieldNormsReader struct {
	norms []uint8
}

func (r fieldNormsReader) FieldNormID(doc segment.DocId) uint8 { return r.norms[doc] }

// FieldNorm decodes a quantized fieldnorm id back to an approximate token
// count. memsegment uses the identity mapping (id IS the token count,
// clamped to uint8) rather than tantivy's byte-lossy log-scale table, since
// the merge algorithm's histogram approximation only needs a monotonic,
// round-trippable decode for its own tests to check against, not wire
// compatibility with a real format.
func (r fieldNormsReader) FieldNorm(id uint8) uint32 { return uint32(id) }

type invertedIndex struct {
	dict        *dictionary
	totalTokens uint64
}

func (i invertedIndex) Dictionary() segment.Dictionary { return i.dict }
func (i invertedIndex) TotalNumTokens() uint64         { return i.totalTokens }

type singleValueReader struct {
	vals    []uint64
	deletes *roaring.Bitmap
}

func (r singleValueReader) Get(doc segment.DocId) uint64 { return r.vals[doc] }

func (r singleValueReader) MinValue() uint64 { return r.bounds(true) }
func (r singleValueReader) MaxValue() uint64 { return r.bounds(false) }

func (r singleValueReader) bounds(min bool) uint64 {
	var best uint64
	seen := false
	for d, v := range r.vals {
		if r.deletes != nil && r.deletes.Contains(uint32(d)) {
			continue
		}
		if !seen || (min && v < best) || (!min && v > best) {
			best, seen = v, true
		}
	}
	return best
}

type multiValueReader struct {
	vals [][]uint64
}

func (r multiValueReader) NumValues(doc segment.DocId) uint32 { return uint32(len(r.vals[doc])) }

func (r multiValueReader) GetValues(doc segment.DocId, out []uint64) []uint64 {
	return append(out, r.vals[doc]...)
}

func (r multiValueReader) TotalNumValues() uint64 {
	var total uint64
	for _, vs := range r.vals {
		total += uint64(len(vs))
	}
	return total
}

type bytesValueReader struct {
	vals [][]byte
}

func (r bytesValueReader) GetBytes(doc segment.DocId) []byte { return r.vals[doc] }
