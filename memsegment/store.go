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
	"encoding/binary"

	"github.com/RoaringBitmap/roaring"
	"github.com/klauspost/compress/s2"

	"github.com/nakama-oss/segmerge/segment"
)

// compressorName identifies memsegment's block codec; block-stacking in
// merge/stored.go compares this string against the input segment's
// reported compressor.
const compressorName = "s2"

// docsPerBlock bounds how many documents memsegment packs per compressed
// block before starting a new one; chosen small so tests can exercise
// multiple blocks and the block-stacking heuristic without huge fixtures.
const docsPerBlock = 16

// store is a stored-document store: one []byte per live doc, grouped into
// s2-compressed blocks, each indexed by a BlockCheckpoint. The block bytes
// backing raw are allocated as one contiguous buffer so RawBlockBytes can
// hand it out for zero-copy stacking, mirroring SegmentBase.mem slicing in
// blugelabs/ice/zap's copyStoredDocs; a production implementation would
// back this buffer with an mmap'd file via github.com/blevesearch/mmap-go
// instead of a heap slice.
type store struct {
	raw         []byte
	checkpoints []segment.BlockCheckpoint
}

// buildStore compresses payloads (already in old-doc-id ascending order)
// into docsPerBlock-sized s2 blocks.
func buildStore(payloads [][]byte) *store {
	st := &store{}
	for i := 0; i < len(payloads); i += docsPerBlock {
		end := i + docsPerBlock
		if end > len(payloads) {
			end = len(payloads)
		}
		block := encodeBlock(payloads[i:end])
		offset := int64(len(st.raw))
		st.raw = append(st.raw, block...)
		st.checkpoints = append(st.checkpoints, segment.BlockCheckpoint{
			FirstDoc: segment.DocId(i),
			NumDocs:  uint32(end - i),
			Offset:   offset,
			Length:   int64(len(block)),
		})
	}
	return st
}

// encodeBlock concatenates payloads as (length-prefixed) records, then
// compresses the whole record stream with s2, so a block decompresses back
// into its original per-document boundaries.
func encodeBlock(payloads [][]byte) []byte {
	var plain []byte
	var lenBuf [4]byte
	for _, p := range payloads {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
		plain = append(plain, lenBuf[:]...)
		plain = append(plain, p...)
	}
	return s2.Encode(nil, plain)
}

func decodeBlock(compressed []byte) ([][]byte, error) {
	plain, err := s2.Decode(nil, compressed)
	if err != nil {
		return nil, segment.WrapError(segment.ErrDataCorruption, "decompress stored-doc block", err)
	}
	var docs [][]byte
	for len(plain) > 0 {
		if len(plain) < 4 {
			return nil, segment.NewError(segment.ErrDataCorruption, "truncated stored-doc block record")
		}
		n := binary.LittleEndian.Uint32(plain[:4])
		plain = plain[4:]
		if uint32(len(plain)) < n {
			return nil, segment.NewError(segment.ErrDataCorruption, "truncated stored-doc block payload")
		}
		docs = append(docs, plain[:n])
		plain = plain[n:]
	}
	return docs, nil
}

func (s *store) BlockCheckpoints() []segment.BlockCheckpoint { return s.checkpoints }
func (s *store) Compressor() string                         { return compressorName }
func (s *store) RawBlockBytes() []byte                       { return s.raw }

func (s *store) IterRaw(alive *roaring.Bitmap) segment.RawDocIterator {
	return &rawDocIterator{st: s, alive: alive, block: -1}
}

type rawDocIterator struct {
	st    *store
	alive *roaring.Bitmap // delete bitmap: Contains(doc) means deleted
	block int
	docs  [][]byte
	pos   int
	base  segment.DocId
	err   error
}

func (it *rawDocIterator) Next() ([]byte, bool) {
	for {
		if it.err != nil {
			return nil, false
		}
		if it.pos < len(it.docs) {
			doc := it.base + segment.DocId(it.pos)
			payload := it.docs[it.pos]
			it.pos++
			if it.alive != nil && it.alive.Contains(uint32(doc)) {
				continue // deleted, skip
			}
			return payload, true
		}
		it.block++
		if it.block >= len(it.st.checkpoints) {
			return nil, false
		}
		cp := it.st.checkpoints[it.block]
		docs, err := decodeBlock(it.st.raw[cp.Offset : cp.Offset+cp.Length])
		if err != nil {
			it.err = err
			return nil, false
		}
		it.docs, it.pos, it.base = docs, 0, cp.FirstDoc
	}
}
