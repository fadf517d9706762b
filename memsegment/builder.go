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
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/nakama-oss/segmerge/segment"
)

// Builder gives tests an ergonomic way to assemble a *Segment fixture one
// document at a time, the way a real indexer would fill a RAM segment
// before committing it, rather than forcing every test to hand-construct
// dictionaries and stores directly.
type Builder struct {
	schema *segment.Schema
	numDoc segment.DocId
	deletes *roaring.Bitmap

	fieldNorms map[string][]uint8
	postings   map[string]map[string][]posting // field -> term -> postings
	single     map[string][]uint64
	multi      map[string][][]uint64
	bytesVals  map[string][][]byte
	stored     [][]byte
}

// NewBuilder starts an empty segment fixture for the given schema.
func NewBuilder(schema *segment.Schema) *Builder {
	return &Builder{
		schema:     schema,
		fieldNorms: map[string][]uint8{},
		postings:   map[string]map[string][]posting{},
		single:     map[string][]uint64{},
		multi:      map[string][][]uint64{},
		bytesVals:  map[string][][]byte{},
	}
}

// AddDoc starts a new document and returns its doc id. Use the returned id
// with the With* methods below to attach field values to it.
func (b *Builder) AddDoc() segment.DocId {
	doc := b.numDoc
	b.numDoc++
	return doc
}

// Delete marks doc as deleted.
func (b *Builder) Delete(doc segment.DocId) {
	if b.deletes == nil {
		b.deletes = roaring.New()
	}
	b.deletes.Add(uint32(doc))
}

// WithTerms indexes doc under each term in terms for field, in document
// order; positions (if the field carries them) are assigned 0, 1, 2, ... per
// occurrence within this call, matching how a tokenizer assigns positions
// within a single document's field value.
func (b *Builder) WithTerms(doc segment.DocId, field string, terms ...string) {
	byTerm, ok := b.postings[field]
	if !ok {
		byTerm = map[string][]posting{}
		b.postings[field] = byTerm
	}
	fe, _ := b.schema.Field(field)
	counts := map[string]uint32{}
	positionsByTerm := map[string][]uint32{}
	for i, t := range terms {
		counts[t]++
		if fe.Positions {
			positionsByTerm[t] = append(positionsByTerm[t], uint32(i))
		}
	}
	for t, freq := range counts {
		byTerm[t] = append(byTerm[t], posting{doc: doc, termFreq: freq, positions: positionsByTerm[t]})
	}
	if fe.FieldNorms {
		b.setFieldNorm(field, doc, uint8(clampU8(len(terms))))
	}
}

// WithFieldNorm sets doc's fieldnorm byte directly, for fields whose norm
// isn't derived from WithTerms (e.g. computed externally by a test).
func (b *Builder) WithFieldNorm(doc segment.DocId, field string, id uint8) {
	b.setFieldNorm(field, doc, id)
}

func (b *Builder) setFieldNorm(field string, doc segment.DocId, id uint8) {
	norms := b.fieldNorms[field]
	for segment.DocId(len(norms)) <= doc {
		norms = append(norms, 0)
	}
	norms[doc] = id
	b.fieldNorms[field] = norms
}

// WithSingleValue sets doc's single-valued fast-field value for field.
func (b *Builder) WithSingleValue(doc segment.DocId, field string, v uint64) {
	b.single[field] = setAt(b.single[field], doc, v)
}

// WithMultiValues sets doc's multi-valued fast-field values for field (used
// both for plain repeated numerics and, when field is a facet, for term
// ordinals referencing WithTerms-indexed terms via the schema's declared
// facet field).
func (b *Builder) WithMultiValues(doc segment.DocId, field string, values ...uint64) {
	b.multi[field] = setAtMulti(b.multi[field], doc, append([]uint64(nil), values...))
}

// WithBytesValue sets doc's bytes fast-field payload for field.
func (b *Builder) WithBytesValue(doc segment.DocId, field string, v []byte) {
	b.bytesVals[field] = setAtBytes(b.bytesVals[field], doc, append([]byte(nil), v...))
}

// WithStoredDoc sets doc's stored-document payload.
func (b *Builder) WithStoredDoc(doc segment.DocId, payload []byte) {
	for segment.DocId(len(b.stored)) <= doc {
		b.stored = append(b.stored, nil)
	}
	b.stored[doc] = append([]byte(nil), payload...)
}

// Build assembles the fixture into a *Segment, building each indexed
// field's FST dictionary from its accumulated terms (sorted lexicographically,
// as vellum requires) and the stored-document store.
func (b *Builder) Build() (*Segment, error) {
	seg := &Segment{
		schema:      b.schema,
		maxDoc:      b.numDoc,
		deletes:     b.deletes,
		fieldNorms:  b.fieldNorms,
		dicts:       map[string]*dictionary{},
		single:      b.single,
		multi:       b.multi,
		bytes:       b.bytesVals,
		totalTokens: map[string]uint64{},
	}
	for field, byTerm := range b.postings {
		terms := make([]string, 0, len(byTerm))
		for t := range byTerm {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		termBytes := make([][]byte, len(terms))
		postingLists := make([][]posting, len(terms))
		var total uint64
		for i, t := range terms {
			termBytes[i] = []byte(t)
			ps := byTerm[t]
			sort.Slice(ps, func(a, c int) bool { return ps[a].doc < ps[c].doc })
			postingLists[i] = ps
			for _, p := range ps {
				total += uint64(len(p.positions))
				if len(p.positions) == 0 {
					total += uint64(p.termFreq)
				}
			}
		}
		d, err := buildDictionary(termBytes, postingLists)
		if err != nil {
			return nil, segment.WrapError(segment.ErrInternal, "build dictionary for "+field, err)
		}
		seg.dicts[field] = d
		seg.totalTokens[field] = total
	}
	// Always build a store, even an empty one: every segment the merge
	// pipeline reads is expected to answer StoreReader (spec.md 4.6 runs
	// unconditionally), not just ones a test happened to add payloads to.
	seg.store = buildStore(b.stored)
	return seg, nil
}

func clampU8(n int) int {
	if n > 255 {
		return 255
	}
	return n
}
