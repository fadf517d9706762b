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
	"github.com/nakama-oss/segmerge/segment"
	"github.com/nakama-oss/segmerge/serialize"
)

// Serializer builds a *Segment incrementally as a merge drives it, the
// concrete implementation of serialize.SegmentSerializer this module ships
// for tests and cmd/mergebench.
type Serializer struct {
	schema *segment.Schema
	out    *Segment

	termsByField    map[string][][]byte
	postingsByField map[string][][]posting
	storedDocs      [][]byte
}

// NewSerializer starts building a segment of the given schema.
func NewSerializer(schema *segment.Schema) *Serializer {
	return &Serializer{
		schema:          schema,
		out:             &Segment{schema: schema, fieldNorms: map[string][]uint8{}, dicts: map[string]*dictionary{}, single: map[string][]uint64{}, multi: map[string][][]uint64{}, bytes: map[string][][]byte{}, totalTokens: map[string]uint64{}},
		termsByField:    map[string][][]byte{},
		postingsByField: map[string][][]posting{},
	}
}

func (s *Serializer) FieldNorms(field string) (serialize.FieldNormsSerializer, error) {
	return &fieldNormsWriter{s: s, field: field}, nil
}

func (s *Serializer) ReopenFieldNorms(field string) (segment.FieldNormsReader, error) {
	norms, ok := s.out.fieldNorms[field]
	if !ok {
		return nil, segment.NewErrorf(segment.ErrSchemaError, "fieldnorms for %q not yet written", field)
	}
	return fieldNormsReader{norms: norms}, nil
}

func (s *Serializer) NewSingleValueFastField(field string, min, max uint64) (serialize.SingleValueFastFieldWriter, error) {
	return &singleValueWriter{s: s, field: field}, nil
}

func (s *Serializer) NewMultiValueFastField(field string, min, max uint64) (serialize.MultiValueFastFieldWriter, error) {
	return &multiValueWriter{s: s, field: field}, nil
}

func (s *Serializer) NewBytesFastField(field string) (serialize.BytesFastFieldWriter, error) {
	return &bytesValueWriter{s: s, field: field}, nil
}

func (s *Serializer) InvertedIndex(field string, totalNumTokens uint64, fieldNorms segment.FieldNormsReader) (serialize.InvertedIndexSerializer, error) {
	s.out.totalTokens[field] = totalNumTokens
	return &invertedIndexWriter{s: s, field: field}, nil
}

func (s *Serializer) StoreWriter() (serialize.StoreWriter, error) {
	return &storeWriter{s: s}, nil
}

// Close finalizes every field's term dictionary (building its FST) and the
// stored-document store, and fixes the segment's max doc id from whichever
// stage wrote the most documents.
func (s *Serializer) Close() error {
	for field, terms := range s.termsByField {
		d, err := buildDictionary(terms, s.postingsByField[field])
		if err != nil {
			return segment.WrapError(segment.ErrInternal, "build merged dictionary for "+field, err)
		}
		s.out.dicts[field] = d
	}
	s.out.store = buildStore(s.storedDocs)

	var maxDoc segment.DocId
	for _, norms := range s.out.fieldNorms {
		if n := segment.DocId(len(norms)); n > maxDoc {
			maxDoc = n
		}
	}
	for _, vals := range s.out.single {
		if n := segment.DocId(len(vals)); n > maxDoc {
			maxDoc = n
		}
	}
	for _, vals := range s.out.multi {
		if n := segment.DocId(len(vals)); n > maxDoc {
			maxDoc = n
		}
	}
	for _, vals := range s.out.bytes {
		if n := segment.DocId(len(vals)); n > maxDoc {
			maxDoc = n
		}
	}
	if n := segment.DocId(len(s.storedDocs)); n > maxDoc {
		maxDoc = n
	}
	s.out.maxDoc = maxDoc
	return nil
}

// Segment returns the built segment; valid only after Close.
func (s *Serializer) Segment() *Segment { return s.out }

type fieldNormsWriter struct {
	s     *Serializer
	field string
}

func (w *fieldNormsWriter) AddDoc(id uint8) error {
	w.s.out.fieldNorms[w.field] = append(w.s.out.fieldNorms[w.field], id)
	return nil
}
func (w *fieldNormsWriter) Close() error { return nil }

type singleValueWriter struct {
	s     *Serializer
	field string
}

func (w *singleValueWriter) AddValue(doc segment.DocId, v uint64) error {
	w.s.out.single[w.field] = setAt(w.s.out.single[w.field], doc, v)
	return nil
}
func (w *singleValueWriter) Close() error { return nil }

type multiValueWriter struct {
	s     *Serializer
	field string
}

func (w *multiValueWriter) AddValues(doc segment.DocId, values []uint64) error {
	cp := append([]uint64(nil), values...)
	w.s.out.multi[w.field] = setAtMulti(w.s.out.multi[w.field], doc, cp)
	return nil
}
func (w *multiValueWriter) Close() error { return nil }

type bytesValueWriter struct {
	s     *Serializer
	field string
}

func (w *bytesValueWriter) AddValue(doc segment.DocId, v []byte) error {
	cp := append([]byte(nil), v...)
	w.s.out.bytes[w.field] = setAtBytes(w.s.out.bytes[w.field], doc, cp)
	return nil
}
func (w *bytesValueWriter) Close() error { return nil }

// setAt/setAtMulti/setAtBytes grow a per-doc slice to cover doc before
// assigning; callers always write in ascending doc order so this never
// revisits an earlier index.
func setAt(s []uint64, doc segment.DocId, v uint64) []uint64 {
	for segment.DocId(len(s)) <= doc {
		s = append(s, 0)
	}
	s[doc] = v
	return s
}

func setAtMulti(s [][]uint64, doc segment.DocId, v []uint64) [][]uint64 {
	for segment.DocId(len(s)) <= doc {
		s = append(s, nil)
	}
	s[doc] = v
	return s
}

func setAtBytes(s [][]byte, doc segment.DocId, v []byte) [][]byte {
	for segment.DocId(len(s)) <= doc {
		s = append(s, nil)
	}
	s[doc] = v
	return s
}

type invertedIndexWriter struct {
	s     *Serializer
	field string
}

func (w *invertedIndexWriter) TermDictionaryWriter() serialize.TermDictionaryWriter {
	return &termDictWriter{s: w.s, field: w.field}
}

type termDictWriter struct {
	s        *Serializer
	field    string
	curTerm  []byte
	curPosts []posting
}

func (w *termDictWriter) NewTerm(term []byte) error {
	w.curTerm = append([]byte(nil), term...)
	w.curPosts = nil
	return nil
}

func (w *termDictWriter) WriteDoc(doc segment.DocId, termFreq uint32, positionDeltas []uint32) error {
	var abs []uint32
	if len(positionDeltas) > 0 {
		abs = make([]uint32, len(positionDeltas))
		var running uint32
		for i, d := range positionDeltas {
			running += d
			abs[i] = running
		}
	}
	w.curPosts = append(w.curPosts, posting{doc: doc, termFreq: termFreq, positions: abs})
	return nil
}

func (w *termDictWriter) CloseTerm() error {
	w.s.termsByField[w.field] = append(w.s.termsByField[w.field], w.curTerm)
	w.s.postingsByField[w.field] = append(w.s.postingsByField[w.field], w.curPosts)
	return nil
}

func (w *termDictWriter) Close() error { return nil }

type storeWriter struct {
	s          *Serializer
	compressor string
}

func (w *storeWriter) AddDocument(payload []byte) error {
	w.s.storedDocs = append(w.s.storedDocs, append([]byte(nil), payload...))
	return nil
}

// StackRawBlock decompresses raw as a single s2 block (memsegment never
// keeps another compressor's bytes verbatim internally, and no zero-copy
// byte range is kept here) and re-adds each document through the normal
// path, preserving the stacking contract — no re-encoding of the
// documents' semantic content, only of the serializer's own block
// boundaries.
func (w *storeWriter) StackRawBlock(raw []byte, numDocs uint32) error {
	docs, err := decodeBlock(raw)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := w.AddDocument(d); err != nil {
			return err
		}
	}
	return nil
}

func (w *storeWriter) Compressor() string { return compressorName }
func (w *storeWriter) Close() error       { return nil }
