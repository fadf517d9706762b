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

// mergeFieldNorms rewrites one field's fieldnorm stream, stacking or sorted
// per p.stacking (spec.md 4.3).
func mergeFieldNorms(p *plan, field string, out serialize.SegmentSerializer) error {
	w, err := out.FieldNorms(field)
	if err != nil {
		return segment.WrapError(segment.ErrIO, "open fieldnorms serializer", err)
	}

	readers := make([]segment.FieldNormsReader, len(p.readers))
	for i, r := range p.readers {
		fnr, err := r.Reader.FieldNormsReader(field)
		if err != nil {
			return segment.WrapError(segment.ErrSchemaError, "fieldnorms reader for "+field, err)
		}
		readers[i] = fnr
	}

	if p.stacking {
		for i, r := range p.readers {
			for _, doc := range r.Reader.LiveDocs() {
				if err := w.AddDoc(readers[i].FieldNormID(doc)); err != nil {
					return segment.WrapError(segment.ErrIO, "write fieldnorm", err)
				}
			}
		}
	} else {
		for _, e := range p.docIDMap {
			if err := w.AddDoc(readers[e.seg].FieldNormID(e.oldDoc)); err != nil {
				return segment.WrapError(segment.ErrIO, "write fieldnorm", err)
			}
		}
	}
	return w.Close()
}
