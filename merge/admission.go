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
	"sort"

	"github.com/nakama-oss/segmerge/segment"
)

// sortBounds is a reader's (min, max) on the configured sort field, used both
// to preorder readers and to test stacking eligibility in §4.2.
type sortBounds struct {
	min, max uint64
}

// admit opens the reader list for one merge: skips empty segments, checks
// the combined live doc count against the hard cap, and, when cfg.Sort
// names a field, pre-sorts readers by that field's min value (spec.md 4.1).
// bounds is nil when cfg.Sort is nil, else parallel to the returned readers.
func admit(segs []segment.Segment, schema *segment.Schema, cfg Config) (readers []segment.ReaderWithOrdinal, bounds []sortBounds, err error) {
	var nonEmpty []segment.Segment
	var total uint64
	for _, s := range segs {
		if s.NumDocs() == 0 {
			continue
		}
		nonEmpty = append(nonEmpty, s)
		total += uint64(s.NumDocs())
	}
	if total >= segment.MaxDocLimit {
		return nil, nil, segment.NewErrorf(segment.ErrInvalidArgument,
			"merged segment would have %d live docs, at or above the cap of %d", total, segment.MaxDocLimit)
	}

	readers = make([]segment.ReaderWithOrdinal, len(nonEmpty))
	for i, s := range nonEmpty {
		readers[i] = segment.ReaderWithOrdinal{Reader: s, Ordinal: segment.SegmentOrdinal(i)}
	}

	if cfg.Sort == nil {
		return readers, nil, nil
	}
	if _, ok := schema.Field(cfg.Sort.Field); !ok {
		return nil, nil, segment.NewErrorf(segment.ErrInvalidArgument, "unknown sort field %q", cfg.Sort.Field)
	}

	rawBounds := make([]sortBounds, len(readers))
	for i, r := range readers {
		acc, aerr := r.Reader.NumericField(cfg.Sort.Field)
		if aerr != nil {
			return nil, nil, segment.WrapError(segment.ErrInvalidArgument,
				"sort field is not u64-coercible", aerr)
		}
		rawBounds[i] = sortBounds{min: acc.MinValue(), max: acc.MaxValue()}
	}

	idx := make([]int, len(readers))
	for i := range idx {
		idx[i] = i
	}
	ascending := cfg.Sort.Order == segment.Ascending
	sort.SliceStable(idx, func(a, b int) bool {
		if ascending {
			return rawBounds[idx[a]].min < rawBounds[idx[b]].min
		}
		return rawBounds[idx[a]].min > rawBounds[idx[b]].min
	})

	ordered := make([]segment.ReaderWithOrdinal, len(readers))
	orderedBounds := make([]sortBounds, len(readers))
	for newPos, oldPos := range idx {
		ordered[newPos] = segment.ReaderWithOrdinal{Reader: readers[oldPos].Reader, Ordinal: segment.SegmentOrdinal(newPos)}
		orderedBounds[newPos] = rawBounds[oldPos]
	}
	return ordered, orderedBounds, nil
}
