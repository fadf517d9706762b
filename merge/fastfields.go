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
	"github.com/nakama-oss/segmerge/segment"
	"github.com/nakama-oss/segmerge/serialize"
)

// mergeFastFields dispatches each schema fast field to one of the four
// write paths named in SPEC_FULL.md §4 ("field-type dispatch detail"),
// mirroring original_source/src/indexer/merger.rs's own branching rather
// than spec.md's single collapsed section.
func mergeFastFields(p *plan, docIDMaps [][]segment.DocId, facetOrdMappings map[string]termOrdinalMapping, out serialize.SegmentSerializer) error {
	for _, f := range p.schema.FastFields() {
		var err error
		switch {
		case f.Type == segment.FieldFacet:
			err = mergeHierarchicalFacetField(p, f, facetOrdMappings[f.Name], out)
		case f.MultiValued:
			err = mergeMultiValuedNumericField(p, f, out)
		case f.Type == segment.FieldBytes:
			err = mergeBytesFastField(p, f, out)
		case f.Type == segment.FieldText:
			continue // text fast fields are currently skipped (spec.md 4.5)
		default:
			err = mergeSingleValuedNumericField(p, f, out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// mergeSingleValuedNumericField rewrites a single-valued u64/i64/f64/date
// fast field: a min/max pass followed by a value-emission pass (spec.md 4.5
// "Single-valued numeric").
func mergeSingleValuedNumericField(p *plan, f segment.FieldEntry, out serialize.SegmentSerializer) error {
	accessors := make([]segment.NumericFieldReader, len(p.readers))
	for i, r := range p.readers {
		acc, err := r.Reader.NumericField(f.Name)
		if err != nil {
			return segment.WrapError(segment.ErrSchemaError, "numeric fast field "+f.Name, err)
		}
		accessors[i] = acc
	}

	min, max := fastFieldBounds(p, accessors)

	w, err := out.NewSingleValueFastField(f.Name, min, max)
	if err != nil {
		return segment.WrapError(segment.ErrIO, "open fast field serializer", err)
	}

	if p.stacking {
		var next segment.DocId
		for i, r := range p.readers {
			for _, d := range r.Reader.LiveDocs() {
				if err := w.AddValue(next, accessors[i].Get(d)); err != nil {
					return segment.WrapError(segment.ErrIO, "write fast field value", err)
				}
				next++
			}
		}
	} else {
		for newDoc, e := range p.docIDMap {
			if err := w.AddValue(segment.DocId(newDoc), accessors[e.seg].Get(e.oldDoc)); err != nil {
				return segment.WrapError(segment.ErrIO, "write fast field value", err)
			}
		}
	}
	return w.Close()
}

// fastFieldBounds computes the global (min, max) for a single-valued
// numeric field: cheap reader-reported bounds when a segment has no
// deletes, a live-doc scan otherwise (spec.md 4.5). Falls back to (0, 0)
// when every contributing segment is empty or entirely deleted.
func fastFieldBounds(p *plan, accessors []segment.NumericFieldReader) (uint64, uint64) {
	var min, max uint64
	seen := false
	for i, r := range p.readers {
		if r.Reader.NumDocs() == 0 {
			continue
		}
		if !r.Reader.HasDeletes() {
			mn, mx := accessors[i].MinValue(), accessors[i].MaxValue()
			if !seen || mn < min {
				min = mn
			}
			if !seen || mx > max {
				max = mx
			}
			seen = true
			continue
		}
		for _, d := range r.Reader.LiveDocs() {
			v := accessors[i].Get(d)
			if !seen || v < min {
				min = v
			}
			if !seen || v > max {
				max = v
			}
			seen = true
		}
	}
	if !seen {
		return 0, 0
	}
	return min, max
}

// mergeMultiValuedNumericField rewrites a multi-valued numeric fast field's
// offsets and values streams (spec.md 4.5 "Multi-valued numeric").
func mergeMultiValuedNumericField(p *plan, f segment.FieldEntry, out serialize.SegmentSerializer) error {
	accessors := make([]segment.MultiNumericFieldReader, len(p.readers))
	for i, r := range p.readers {
		acc, err := r.Reader.MultiNumericField(f.Name)
		if err != nil {
			return segment.WrapError(segment.ErrSchemaError, "multi-valued fast field "+f.Name, err)
		}
		accessors[i] = acc
	}

	min, max := multiValuedBounds(p, accessors)
	w, err := out.NewMultiValueFastField(f.Name, min, max)
	if err != nil {
		return segment.WrapError(segment.ErrIO, "open fast field serializer", err)
	}

	var buf []uint64
	emit := func(newDoc segment.DocId, seg int, oldDoc segment.DocId) error {
		buf = accessors[seg].GetValues(oldDoc, buf[:0])
		return w.AddValues(newDoc, buf)
	}

	if p.stacking {
		var next segment.DocId
		for i, r := range p.readers {
			for _, d := range r.Reader.LiveDocs() {
				if err := emit(next, i, d); err != nil {
					return segment.WrapError(segment.ErrIO, "write multi-valued fast field", err)
				}
				next++
			}
		}
	} else {
		for newDoc, e := range p.docIDMap {
			if err := emit(segment.DocId(newDoc), int(e.seg), e.oldDoc); err != nil {
				return segment.WrapError(segment.ErrIO, "write multi-valued fast field", err)
			}
		}
	}
	return w.Close()
}

// multiValuedBounds computes the global (min_val, max_val) across all live
// multi-values, the first of the two passes named in spec.md 4.5
// "Multi-valued numeric" step 2.
func multiValuedBounds(p *plan, accessors []segment.MultiNumericFieldReader) (uint64, uint64) {
	var min, max uint64
	seen := false
	var buf []uint64
	for i, r := range p.readers {
		for _, d := range r.Reader.LiveDocs() {
			buf = accessors[i].GetValues(d, buf[:0])
			for _, v := range buf {
				if !seen || v < min {
					min = v
				}
				if !seen || v > max {
					max = v
				}
				seen = true
			}
		}
	}
	if !seen {
		return 0, 0
	}
	return min, max
}

// mergeHierarchicalFacetField rewrites a facet fast field: same two-stream
// shape as a multi-valued numeric field, but every value is translated
// through ordMapping, and the value column's bounds are (0, max_new_term_ord)
// per spec.md 4.5 "Hierarchical facet". ordMapping is nil only if the
// field's postings were never merged, a schema inconsistency the caller
// should have already rejected.
func mergeHierarchicalFacetField(p *plan, f segment.FieldEntry, ordMapping termOrdinalMapping, out serialize.SegmentSerializer) error {
	if ordMapping == nil {
		return segment.NewErrorf(segment.ErrSchemaError, "facet field %s has no term-ordinal mapping from the postings pass", f.Name)
	}
	accessors := make([]segment.MultiNumericFieldReader, len(p.readers))
	for i, r := range p.readers {
		acc, err := r.Reader.MultiNumericField(f.Name)
		if err != nil {
			return segment.WrapError(segment.ErrSchemaError, "facet fast field "+f.Name, err)
		}
		accessors[i] = acc
	}

	maxNewOrd := segment.TermOrdinal(0)
	for _, row := range ordMapping {
		for _, no := range row {
			if no > maxNewOrd {
				maxNewOrd = no
			}
		}
	}

	w, err := out.NewMultiValueFastField(f.Name, 0, uint64(maxNewOrd))
	if err != nil {
		return segment.WrapError(segment.ErrIO, "open fast field serializer", err)
	}

	var raw, mapped []uint64
	emit := func(newDoc segment.DocId, seg segment.SegmentOrdinal, oldDoc segment.DocId) error {
		raw = accessors[seg].GetValues(oldDoc, raw[:0])
		mapped = mapped[:0]
		for _, v := range raw {
			mapped = append(mapped, uint64(ordMapping.newOrd(seg, segment.TermOrdinal(v))))
		}
		return w.AddValues(newDoc, mapped)
	}

	if p.stacking {
		var next segment.DocId
		for _, r := range p.readers {
			for _, d := range r.Reader.LiveDocs() {
				if err := emit(next, r.Ordinal, d); err != nil {
					return segment.WrapError(segment.ErrIO, "write facet fast field", err)
				}
				next++
			}
		}
	} else {
		for newDoc, e := range p.docIDMap {
			if err := emit(segment.DocId(newDoc), e.seg, e.oldDoc); err != nil {
				return segment.WrapError(segment.ErrIO, "write facet fast field", err)
			}
		}
	}
	return w.Close()
}

// mergeBytesFastField rewrites a variable-length bytes fast field's offsets
// and concatenated-bytes streams (spec.md 4.5 "Bytes fast field").
func mergeBytesFastField(p *plan, f segment.FieldEntry, out serialize.SegmentSerializer) error {
	accessors := make([]segment.BytesFieldReader, len(p.readers))
	for i, r := range p.readers {
		acc, err := r.Reader.BytesField(f.Name)
		if err != nil {
			return segment.WrapError(segment.ErrSchemaError, "bytes fast field "+f.Name, err)
		}
		accessors[i] = acc
	}

	w, err := out.NewBytesFastField(f.Name)
	if err != nil {
		return segment.WrapError(segment.ErrIO, "open fast field serializer", err)
	}

	if p.stacking {
		var next segment.DocId
		for i, r := range p.readers {
			for _, d := range r.Reader.LiveDocs() {
				if err := w.AddValue(next, accessors[i].GetBytes(d)); err != nil {
					return segment.WrapError(segment.ErrIO, "write bytes fast field", err)
				}
				next++
			}
		}
	} else {
		for newDoc, e := range p.docIDMap {
			if err := w.AddValue(segment.DocId(newDoc), accessors[e.seg].GetBytes(e.oldDoc)); err != nil {
				return segment.WrapError(segment.ErrIO, "write bytes fast field", err)
			}
		}
	}
	return w.Close()
}
