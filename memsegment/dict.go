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
	"bytes"

	"github.com/RoaringBitmap/roaring"
	"github.com/blevesearch/vellum"

	"github.com/nakama-oss/segmerge/segment"
)

// dictionary is a field's term dictionary: an FST mapping term bytes to a
// dense TermOrdinal, with postings kept alongside in ordinal order. Modeled
// on blugelabs/ice's Dictionary, which wraps the same vellum.FST/Reader
// pair for exactly this purpose.
type dictionary struct {
	fst      *vellum.FST
	postings [][]posting // indexed by TermOrdinal
}

type posting struct {
	doc       segment.DocId
	termFreq  uint32
	positions []uint32 // absolute, empty if the field doesn't index positions
}

// buildDictionary constructs a dictionary from terms already sorted in
// lexicographic order, one posting list per term, matching vellum's
// sorted-insertion requirement.
func buildDictionary(terms [][]byte, postings [][]posting) (*dictionary, error) {
	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, segment.WrapError(segment.ErrInternal, "create vellum builder", err)
	}
	for i, t := range terms {
		if err := builder.Insert(t, uint64(i)); err != nil {
			return nil, segment.WrapError(segment.ErrInternal, "insert term into FST", err)
		}
	}
	if err := builder.Close(); err != nil {
		return nil, segment.WrapError(segment.ErrInternal, "close FST builder", err)
	}
	fst, err := vellum.Load(buf.Bytes())
	if err != nil {
		return nil, segment.WrapError(segment.ErrInternal, "load FST", err)
	}
	return &dictionary{fst: fst, postings: postings}, nil
}

func (d *dictionary) NumTerms() segment.TermOrdinal { return segment.TermOrdinal(len(d.postings)) }

func (d *dictionary) Iterator() segment.TermDictionaryIterator {
	it, err := d.fst.Iterator(nil, nil)
	if err == vellum.ErrIteratorDone {
		return &dictIterator{done: true}
	}
	return &dictIterator{it: it, err: err}
}

func (d *dictionary) PostingsList(ord segment.TermOrdinal, reuse segment.PostingsList) (segment.PostingsList, error) {
	if int(ord) >= len(d.postings) {
		return nil, segment.NewErrorf(segment.ErrInternal, "term ordinal %d out of range", ord)
	}
	return &postingsList{entries: d.postings[ord]}, nil
}

type dictIterator struct {
	it   vellum.Iterator
	err  error
	done bool
	term []byte
	ord  uint64
}

func (i *dictIterator) Next() bool {
	if i.done || i.err != nil {
		return false
	}
	if i.it == nil {
		i.done = true
		return false
	}
	// On the first call the vellum cursor already stands on the first
	// (term, ordinal), so it is reported without advancing; later calls
	// advance first, so Term()/Ordinal() read the position Next() moved to,
	// matching vellum's Current()-then-Next() iteration shape used by
	// blugelabs/ice's DictionaryIterator.
	if i.term == nil {
		t, v := i.it.Current()
		i.term, i.ord = append([]byte(nil), t...), v
		return true
	}
	err := i.it.Next()
	if err == vellum.ErrIteratorDone {
		i.done = true
		return false
	}
	if err != nil {
		i.err = err
		return false
	}
	t, v := i.it.Current()
	i.term, i.ord = append([]byte(nil), t...), v
	return true
}

func (i *dictIterator) Term() []byte { return i.term }

func (i *dictIterator) Ordinal() segment.TermOrdinal { return segment.TermOrdinal(i.ord) }

type postingsList struct {
	entries []posting
}

func (p *postingsList) DocFreq() uint64 { return uint64(len(p.entries)) }

func (p *postingsList) DocFreqAlive(alive *roaring.Bitmap) uint64 {
	if alive == nil || alive.IsEmpty() {
		return uint64(len(p.entries))
	}
	var n uint64
	for _, e := range p.entries {
		if !alive.Contains(uint32(e.doc)) {
			n++
		}
	}
	return n
}

func (p *postingsList) Iterator(includePositions bool, reuse segment.PostingsIterator) segment.PostingsIterator {
	return &postingsIterator{entries: p.entries, pos: -1, includePositions: includePositions}
}

type postingsIterator struct {
	entries          []posting
	pos              int
	includePositions bool
}

func (it *postingsIterator) Doc() segment.DocId {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return segment.Terminated
	}
	return it.entries[it.pos].doc
}

func (it *postingsIterator) Advance() segment.DocId {
	it.pos++
	return it.Doc()
}

func (it *postingsIterator) TermFreq() uint32 {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return 0
	}
	return it.entries[it.pos].termFreq
}

func (it *postingsIterator) Positions(buf []uint32) []uint32 {
	if !it.includePositions || it.pos < 0 || it.pos >= len(it.entries) {
		return buf[:0]
	}
	return append(buf[:0], it.entries[it.pos].positions...)
}
