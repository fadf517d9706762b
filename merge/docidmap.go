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

import "github.com/nakama-oss/segmerge/segment"

// decideStacking applies the §4.2 stacking test: stacking iff no sort field
// is configured, or the sort-preordered readers are disjoint and ordered on
// the sort value (adjacent max/min comparisons per direction).
func decideStacking(cfg Config, bounds []sortBounds) bool {
	if cfg.Sort == nil {
		return true
	}
	ascending := cfg.Sort.Order == segment.Ascending
	for i := 0; i+1 < len(bounds); i++ {
		a, b := bounds[i], bounds[i+1]
		if ascending {
			if a.max > b.min {
				return false
			}
		} else {
			if a.min < b.max {
				return false
			}
		}
	}
	return true
}

// docKey orders doc-id mapping entries by sort value, descending flips the
// comparison so kwayMerge's ascending drain still yields the configured
// direction.
type docKey struct {
	val  uint64
	desc bool
}

func docKeyLess(a, b docKey) bool {
	if a.desc {
		return a.val > b.val
	}
	return a.val < b.val
}

// buildDocIDMapping constructs the explicit DocIdMapping by k-way merging
// the live doc ids of every reader, keyed by sort-field value (spec.md 4.2).
// Ties break by (segment ordinal, old doc id) via kwayMerge's ordinal
// tie-break plus each source yielding its live docs in ascending order.
func buildDocIDMapping(readers []segment.ReaderWithOrdinal, cfg Config) ([]mappedDoc, error) {
	desc := cfg.Sort.Order == segment.Descending

	type liveCursor struct {
		seg  segment.SegmentOrdinal
		live []segment.DocId
		pos  int
		acc  segment.NumericFieldReader
	}

	sources := make([]kwaySource[docKey, mappedDoc], 0, len(readers))
	total := 0
	for i, r := range readers {
		acc, err := r.Reader.NumericField(cfg.Sort.Field)
		if err != nil {
			return nil, segment.WrapError(segment.ErrInvalidArgument, "sort field accessor unavailable", err)
		}
		live := r.Reader.LiveDocs()
		if len(live) == 0 {
			continue
		}
		cur := &liveCursor{seg: r.Ordinal, live: live, acc: acc}
		sources = append(sources, kwaySource[docKey, mappedDoc]{
			ordinal: i,
			key:     docKey{val: acc.Get(live[0]), desc: desc},
			val:     mappedDoc{oldDoc: live[0], seg: r.Ordinal},
			next: func() (docKey, mappedDoc, bool) {
				cur.pos++
				if cur.pos >= len(cur.live) {
					return docKey{}, mappedDoc{}, false
				}
				d := cur.live[cur.pos]
				return docKey{val: cur.acc.Get(d), desc: desc}, mappedDoc{oldDoc: d, seg: cur.seg}, true
			},
		})
		total += len(live)
	}

	out := make([]mappedDoc, 0, total)
	kwayMerge(sources, docKeyLess, func(_ int, _ docKey, v mappedDoc) {
		out = append(out, v)
	})
	return out, nil
}
