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

// Package merge implements the segment merge pipeline: admission and reader
// ordering, doc-id mapping, and the fieldnorms/postings/fast-fields/stored-
// documents rewrite stages that produce one output segment from N inputs.
package merge

import (
	"github.com/nakama-oss/segmerge/segment"
)

// Config names the merge's optional global sort order. A nil *Config.Sort
// (or the zero Config) means stacking mode is mandatory.
type Config struct {
	Sort *segment.SortConfig
}

// plan is the resolved state threaded through every merge stage: the ordered
// readers, whether stacking applies, and (when not) the materialized
// DocIdMapping.
type plan struct {
	readers []segment.ReaderWithOrdinal
	schema  *segment.Schema

	stacking bool
	docIDMap []mappedDoc // len == newMaxDoc, valid only when !stacking

	newMaxDoc uint32
}

// mappedDoc is one entry of a materialized DocIdMapping: new doc id is the
// slice index.
type mappedDoc struct {
	oldDoc segment.DocId
	seg    segment.SegmentOrdinal
}

// Merger drives one merge operation end to end.
type Merger struct {
	cfg Config
}

// NewMerger builds a Merger bound to cfg for the lifetime of however many
// Merge calls it is used for; Config carries no per-run state.
func NewMerger(cfg Config) *Merger {
	return &Merger{cfg: cfg}
}
