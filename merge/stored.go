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

// minStackableCheckpointSample and minStackableCheckpoints implement the
// "≥6 of the first 7 checkpoints" block-stacking heuristic (spec.md 4.6,
// 9 Open Question): a segment below this density would leave a small tail
// block behind after stacking, so it is decoded and re-encoded instead.
const (
	minStackableCheckpointSample = 7
	minStackableCheckpoints      = 6
)

// mergeStoredDocs re-emits the stored-document store, sorted-mode per-doc
// copy or stacking-mode block concatenation per segment (spec.md 4.6).
func mergeStoredDocs(p *plan, out serialize.SegmentSerializer) error {
	w, err := out.StoreWriter()
	if err != nil {
		return segment.WrapError(segment.ErrIO, "open store writer", err)
	}

	if !p.stacking {
		if err := mergeStoredDocsSorted(p, w); err != nil {
			return err
		}
		return w.Close()
	}
	for _, r := range p.readers {
		if err := mergeStoredDocsStackingOne(r, w); err != nil {
			return err
		}
	}
	return w.Close()
}

// mergeStoredDocsSorted iterates p.docIDMap and pulls, per segment, the next
// raw payload from that segment's store iterator. The mapping's
// per-segment subsequences must appear in ascending old-doc-id order
// (guaranteed by §4.2's stable k-way merge), so one forward iterator per
// segment suffices without random access.
func mergeStoredDocsSorted(p *plan, w serialize.StoreWriter) error {
	iters := make([]segment.RawDocIterator, len(p.readers))
	for i, r := range p.readers {
		sr, err := r.Reader.StoreReader()
		if err != nil {
			return segment.WrapError(segment.ErrIO, "open store reader", err)
		}
		iters[i] = sr.IterRaw(r.Reader.DeleteBitmap())
	}
	for _, e := range p.docIDMap {
		payload, ok := iters[e.seg].Next()
		if !ok {
			return segment.NewErrorf(segment.ErrDataCorruption,
				"stored-doc iterator for segment %d exhausted before the doc-id mapping", e.seg)
		}
		if err := w.AddDocument(payload); err != nil {
			return segment.WrapError(segment.ErrIO, "write stored document", err)
		}
	}
	return nil
}

// mergeStoredDocsStackingOne applies the stacking-mode heuristic to one
// segment: block-stack verbatim when eligible, else decode-and-re-encode
// every live document (spec.md 4.6 "Stacking mode").
func mergeStoredDocsStackingOne(r segment.ReaderWithOrdinal, w serialize.StoreWriter) error {
	sr, err := r.Reader.StoreReader()
	if err != nil {
		return segment.WrapError(segment.ErrIO, "open store reader", err)
	}

	if isBlockStackable(r.Reader, sr, w.Compressor()) {
		return stackBlocksVerbatim(sr, w)
	}

	it := sr.IterRaw(r.Reader.DeleteBitmap())
	for {
		payload, ok := it.Next()
		if !ok {
			break
		}
		if err := w.AddDocument(payload); err != nil {
			return segment.WrapError(segment.ErrIO, "write stored document", err)
		}
	}
	return nil
}

// isBlockStackable decides whether a segment's store can be appended
// verbatim: no deletions, a compressor matching the output writer's, and at
// least minStackableCheckpoints of its first minStackableCheckpointSample
// block checkpoints present (spec.md 4.6, 9).
func isBlockStackable(seg segment.Segment, sr segment.StoreReader, outCompressor string) bool {
	if seg.HasDeletes() {
		return false
	}
	if sr.Compressor() != outCompressor {
		return false
	}
	cps := sr.BlockCheckpoints()
	sample := cps
	if len(sample) > minStackableCheckpointSample {
		sample = sample[:minStackableCheckpointSample]
	}
	return len(sample) >= minStackableCheckpoints
}

// stackBlocksVerbatim hands sr's whole compressed block region and its total
// doc count to the writer's StackRawBlock in one call (spec.md 4.6
// "block-stack"). The per-block checkpoints are not passed to the writer.
func stackBlocksVerbatim(sr segment.StoreReader, w serialize.StoreWriter) error {
	raw := sr.RawBlockBytes()
	var numDocs uint32
	for _, cp := range sr.BlockCheckpoints() {
		numDocs += cp.NumDocs
	}
	if err := w.StackRawBlock(raw, numDocs); err != nil {
		return segment.WrapError(segment.ErrIO, "stack stored-doc blocks", err)
	}
	return nil
}
