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
	"bytes"
	"sort"

	"github.com/nakama-oss/segmerge/segment"
	"github.com/nakama-oss/segmerge/serialize"
)

// notMapped marks a doc that did not survive the merge in a per-segment
// merged_doc_id_map (spec.md 4.4 step 5).
const notMapped segment.DocId = segment.Terminated

// termOrdinalMapping is the per-field, per-segment old→new term ordinal
// table populated while merging a facet field's postings and consumed while
// merging its fast field (spec.md 3, "TermOrdinalMapping"). Entries default
// to 0, "did not survive" per spec.md 3.
type termOrdinalMapping [][]segment.TermOrdinal

func (m termOrdinalMapping) newOrd(seg segment.SegmentOrdinal, old segment.TermOrdinal) segment.TermOrdinal {
	row := m[seg]
	if int(old) >= len(row) {
		return 0
	}
	return row[old]
}

// buildMergedDocIDMap computes, for each segment, a dense old-doc-id →
// new-doc-id table (Terminated where deleted), per spec.md 4.4 step 5.
func buildMergedDocIDMap(p *plan) [][]segment.DocId {
	out := make([][]segment.DocId, len(p.readers))
	for i, r := range p.readers {
		row := make([]segment.DocId, r.Reader.MaxDoc())
		for d := range row {
			row[d] = notMapped
		}
		out[i] = row
	}
	if p.stacking {
		var next segment.DocId
		for i, r := range p.readers {
			for _, d := range r.Reader.LiveDocs() {
				out[i][d] = next
				next++
			}
		}
	} else {
		for newDoc, e := range p.docIDMap {
			out[e.seg][e.oldDoc] = segment.DocId(newDoc)
		}
	}
	return out
}

// fieldPostingsResult is what mergePostingsField hands back to the
// orchestrator: the facet term-ordinal mapping, when the field is a facet.
type fieldPostingsResult struct {
	termOrdMapping termOrdinalMapping
	isFacet        bool
	termsWritten   segment.TermOrdinal
}

// termCursor walks one segment's term dictionary in lexicographic order.
type termCursor struct {
	seg  segment.SegmentOrdinal
	it   segment.TermDictionaryIterator
	dict segment.Dictionary
	ok   bool
}

func newTermCursor(seg segment.SegmentOrdinal, dict segment.Dictionary) *termCursor {
	c := &termCursor{seg: seg, it: dict.Iterator(), dict: dict}
	c.ok = c.it.Next()
	return c
}

// mergePostingsField merges one field's term dictionary and posting lists
// across all readers (spec.md 4.4). docIDMaps is the output of
// buildMergedDocIDMap, shared across all fields in one merge; fnormReaders
// is only consulted when a contributing segment has deletes (token-count
// approximation).
func mergePostingsField(p *plan, field segment.FieldEntry, docIDMaps [][]segment.DocId, fnormReaders []segment.FieldNormsReader, mergedFieldNorms segment.FieldNormsReader, out serialize.SegmentSerializer) (fieldPostingsResult, error) {
	indices := make([]segment.InvertedIndex, len(p.readers))
	var cursors []*termCursor
	for i, r := range p.readers {
		idx, err := r.Reader.InvertedIndex(field.Name)
		if err != nil {
			continue // field not indexed in this segment
		}
		indices[i] = idx
		cursors = append(cursors, newTermCursor(r.Ordinal, idx.Dictionary()))
	}

	totalTokens, err := computeTotalTokens(p, field, indices, fnormReaders)
	if err != nil {
		return fieldPostingsResult{}, err
	}

	result := fieldPostingsResult{isFacet: field.Type == segment.FieldFacet}
	if result.isFacet {
		result.termOrdMapping = make(termOrdinalMapping, len(p.readers))
		for _, r := range p.readers {
			var numTerms segment.TermOrdinal
			if idx := indices[r.Ordinal]; idx != nil {
				numTerms = idx.Dictionary().NumTerms()
			}
			result.termOrdMapping[r.Ordinal] = make([]segment.TermOrdinal, numTerms)
		}
	}

	fserial, err := out.InvertedIndex(field.Name, totalTokens, mergedFieldNorms)
	if err != nil {
		return fieldPostingsResult{}, segment.WrapError(segment.ErrIO, "open inverted index serializer", err)
	}
	tw := fserial.TermDictionaryWriter()

	var nextOrd segment.TermOrdinal
	var docBuf []sortedPosting
	for {
		group, term, more := nextTermGroup(cursors)
		if !more {
			break
		}
		wrote, err := emitTerm(p, term, group, docIDMaps, field.Positions, tw, nextOrd, result, &docBuf)
		if err != nil {
			return fieldPostingsResult{}, err
		}
		if wrote {
			nextOrd++
		}
	}
	if err := tw.Close(); err != nil {
		return fieldPostingsResult{}, segment.WrapError(segment.ErrIO, "close term dictionary writer", err)
	}
	result.termsWritten = nextOrd
	return result, nil
}

// nextTermGroup returns the set of cursors currently positioned on the
// lexicographically smallest term among them, and that term. Cursors not in
// the group are left untouched; call advanceGroup once the group's term is
// fully processed.
func nextTermGroup(cursors []*termCursor) ([]*termCursor, []byte, bool) {
	var min []byte
	found := false
	for _, c := range cursors {
		if !c.ok {
			continue
		}
		t := c.it.Term()
		if !found || bytes.Compare(t, min) < 0 {
			min = append(min[:0:0], t...)
			found = true
		}
	}
	if !found {
		return nil, nil, false
	}
	var group []*termCursor
	for _, c := range cursors {
		if c.ok && bytes.Equal(c.it.Term(), min) {
			group = append(group, c)
		}
	}
	return group, min, true
}

// advanceGroup moves every cursor in group to its next term, clearing ok
// once a cursor is exhausted.
func advanceGroup(group []*termCursor) {
	for _, c := range group {
		c.ok = c.it.Next()
	}
}

// sortedPosting is one (term, doc) contribution buffered for sorted-mode
// emission; positions are absolute, not yet delta-encoded.
type sortedPosting struct {
	newDoc    segment.DocId
	termFreq  uint32
	positions []uint32
}

// emitTerm resolves one distinct term across the segments in group, computes
// its total doc frequency, and — if it survives — writes its posting list
// through tw under ordinal ord, recording the facet term-ordinal mapping for
// every contributing segment (spec.md 4.4). Reports whether the term
// survived (ord was consumed) so the caller's counter advances correctly.
func emitTerm(p *plan, term []byte, group []*termCursor, docIDMaps [][]segment.DocId, withPositions bool, tw serialize.TermDictionaryWriter, ord segment.TermOrdinal, result fieldPostingsResult, docBuf *[]sortedPosting) (bool, error) {
	defer advanceGroup(group)

	type contribution struct {
		seg    segment.SegmentOrdinal
		oldOrd segment.TermOrdinal
		pl     segment.PostingsList
		docMap []segment.DocId
	}

	var contribs []contribution
	var totalDocFreq uint64
	for _, c := range group {
		idx := segOrdToIndex(c.seg)
		alive := p.readers[idx].Reader.DeleteBitmap()
		oldOrd := c.it.Ordinal()
		pl, err := c.dict.PostingsList(oldOrd, nil)
		if err != nil {
			return false, segment.WrapError(segment.ErrIO, "resolve postings list", err)
		}
		totalDocFreq += pl.DocFreqAlive(alive)
		contribs = append(contribs, contribution{seg: c.seg, oldOrd: oldOrd, pl: pl, docMap: docIDMaps[idx]})
	}
	if totalDocFreq == 0 {
		return false, nil
	}

	if err := tw.NewTerm(term); err != nil {
		return false, segment.WrapError(segment.ErrIO, "write new term", err)
	}

	*docBuf = (*docBuf)[:0]
	for _, c := range contribs {
		it := c.pl.Iterator(withPositions, nil)
		for d := it.Advance(); d != segment.Terminated; d = it.Advance() {
			newDoc := c.docMap[d]
			if newDoc == notMapped {
				continue
			}
			var positions []uint32
			if withPositions {
				positions = it.Positions(nil)
			}
			*docBuf = append(*docBuf, sortedPosting{newDoc: newDoc, termFreq: it.TermFreq(), positions: positions})
		}
	}

	if !p.stacking {
		// Stacking mode already yields ascending new doc ids because
		// contribs are visited in segment-ordinal order and each segment's
		// block is contiguous (spec.md 4.4 "stacking mode"); sorted mode
		// must explicitly reorder.
		sort.Slice(*docBuf, func(i, j int) bool { return (*docBuf)[i].newDoc < (*docBuf)[j].newDoc })
	}

	for _, sp := range *docBuf {
		if err := tw.WriteDoc(sp.newDoc, sp.termFreq, deltasFromAbsolute(sp.positions)); err != nil {
			return false, segment.WrapError(segment.ErrIO, "write posting", err)
		}
	}
	if err := tw.CloseTerm(); err != nil {
		return false, segment.WrapError(segment.ErrIO, "close term", err)
	}

	if result.isFacet {
		for _, c := range contribs {
			row := result.termOrdMapping[c.seg]
			if int(c.oldOrd) < len(row) {
				row[c.oldOrd] = ord
			}
		}
	}
	return true, nil
}

// deltasFromAbsolute converts a strictly ascending absolute position list
// into positive deltas from 0, resetting per (term, doc) per spec.md 4.4 /
// design note "delta computation".
func deltasFromAbsolute(positions []uint32) []uint32 {
	if len(positions) == 0 {
		return nil
	}
	deltas := make([]uint32, len(positions))
	prev := uint32(0)
	for i, pos := range positions {
		deltas[i] = pos - prev
		prev = pos
	}
	return deltas
}

// segOrdToIndex maps a SegmentOrdinal back to its position in the merge's
// reader list. admit builds that list so Ordinal already equals index (see
// admission.go); this is the identity, named for readability at call sites.
func segOrdToIndex(ord segment.SegmentOrdinal) int {
	return int(ord)
}

// computeTotalTokens approximates or sums total_num_tokens for field per
// spec.md 4.4 step 4: exact when no segment has deletes, else a fieldnorm-
// histogram-weighted approximation.
func computeTotalTokens(p *plan, field segment.FieldEntry, indices []segment.InvertedIndex, fnormReaders []segment.FieldNormsReader) (uint64, error) {
	var total uint64
	for i, r := range p.readers {
		idx := indices[r.Ordinal]
		if idx == nil {
			continue
		}
		if !r.Reader.HasDeletes() {
			total += idx.TotalNumTokens()
			continue
		}
		fnr := fnormReaders[i]
		if fnr == nil {
			return 0, segment.NewErrorf(segment.ErrSchemaError, "missing fieldnorms reader for %s while approximating token count", field.Name)
		}
		var hist [256]uint64
		for _, d := range r.Reader.LiveDocs() {
			hist[fnr.FieldNormID(d)]++
		}
		for id, count := range hist {
			if count == 0 {
				continue
			}
			total += count * uint64(fnr.FieldNorm(uint8(id)))
		}
	}
	return total, nil
}
