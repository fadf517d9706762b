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

// Package segment defines the data model and reader capabilities the merger
// consumes. The on-disk format behind these interfaces is out of scope; see
// package memsegment for a concrete, in-memory implementation used by tests.
package segment

import "math"

// DocId is a document identifier, local to one segment until remapped by a merge.
type DocId uint32

// Terminated is the sentinel DocId returned by a posting iterator once exhausted.
const Terminated DocId = math.MaxUint32

// TermOrdinal is a dense, per-segment index into a term dictionary, assigned in
// lexicographic byte order of the term.
type TermOrdinal uint64

// MaxDocLimit is the hard cap on a merged segment's document count, reserved by
// the wire format's 31-bit doc-id range.
const MaxDocLimit uint64 = 1 << 31

// SortOrder is the direction of a configured sort field.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (o SortOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// SortConfig names the field a merge should globally order its output by, and
// in which direction. A nil *SortConfig means stacking mode is mandatory.
type SortConfig struct {
	Field string
	Order SortOrder
}

// SegmentOrdinal is a reader's position within the merger's ordered reader list,
// used to index parallel per-segment arrays (fieldnorm readers, fast-field
// accessors, term-ordinal mappings, ...).
type SegmentOrdinal uint32

// ReaderWithOrdinal pairs a reader with its position in the merger's reader list.
type ReaderWithOrdinal struct {
	Reader  Segment
	Ordinal SegmentOrdinal
}
