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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/nakama-oss/segmerge/segment"
)

// fingerprintSegment hashes a reader's shape (doc counts, delete state, and
// schema field names, in schema order) into a single uint64, the way
// server/storage_index.go logs a bluge batch's identity for correlating log
// lines without reading the whole segment back. It is logged alongside
// merge progress for operators to cross-reference input segments across
// log lines; it is never consulted by the merge algorithm itself.
func fingerprintSegment(seg segment.Segment) uint64 {
	h := xxhash.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(seg.MaxDoc()))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(seg.NumDocs()))
	h.Write(buf[:])
	if seg.HasDeletes() {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	for _, f := range seg.Schema().Fields {
		h.Write([]byte(f.Name))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// fingerprintMerge combines the per-segment fingerprints (each folded in
// alongside its position in the input list, so the same distinct segments
// in another order give a different result) and the resolved new_max_doc
// into one value
// identifying this merge's inputs and outcome in the log stream.
func fingerprintMerge(perSegment []uint64, newMaxDoc uint32) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for i, fp := range perSegment {
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], fp)
		h.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(newMaxDoc))
	h.Write(buf[:])
	return h.Sum64()
}
