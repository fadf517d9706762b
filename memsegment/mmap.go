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
	"os"

	mmap "github.com/blevesearch/mmap-go"

	"github.com/nakama-oss/segmerge/segment"
)

// MmappedStore persists a store's raw block bytes to disk and maps them
// back read-only, so its raw bytes are slices of mapped memory rather than
// heap-backed byte slices, matching SegmentBase.mem in blugelabs/ice/zap.
// A Segment does not read its stored documents through an MmappedStore:
// cmd/mergebench maps one segment's store and closes it again before
// merging, and the merge reads each segment's heap-backed store.
type MmappedStore struct {
	store
	file *os.File
	mm   mmap.MMap
}

// PersistAndMap writes st's raw bytes to path and reopens it as a
// read-only mmap, returning a store backed by the mapped bytes.
func PersistAndMap(st *store, path string) (*MmappedStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, segment.WrapError(segment.ErrIO, "create mmap-backed store file", err)
	}
	if _, err := f.Write(st.raw); err != nil {
		f.Close()
		return nil, segment.WrapError(segment.ErrIO, "write store bytes", err)
	}
	if len(st.raw) == 0 {
		// mmap-go cannot map a zero-length file; an empty store has no
		// blocks to stack anyway, so fall back to a nil mapping.
		return &MmappedStore{store: store{checkpoints: st.checkpoints}, file: f}, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, segment.WrapError(segment.ErrIO, "mmap store file", err)
	}
	return &MmappedStore{
		store: store{raw: []byte(m), checkpoints: st.checkpoints},
		file:  f,
		mm:    m,
	}, nil
}

// PersistStore round-trips seg's stored-document store through path,
// returning a reader backed by mapped bytes instead of heap memory. Used by
// cmd/mergebench to exercise mmap-go from a genuine call site.
func (s *Segment) PersistStore(path string) (*MmappedStore, error) {
	if s.store == nil {
		return nil, segment.NewError(segment.ErrSchemaError, "segment has no stored-document store")
	}
	return PersistAndMap(s.store, path)
}

// Close unmaps and closes the backing file.
func (m *MmappedStore) Close() error {
	var err error
	if m.mm != nil {
		err = m.mm.Unmap()
	}
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}
