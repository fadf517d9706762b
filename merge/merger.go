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
	"context"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/nakama-oss/segmerge/segment"
	"github.com/nakama-oss/segmerge/serialize"
)

// Progress holds a merge's counters (mirrors the teacher's
// go.uber.org/atomic counters in server/storage_index.go). Merge returns it
// when it finishes: TermsWritten grows per merged field and DocsWritten is
// set once the merge completes.
type Progress struct {
	DocsWritten  atomic.Uint64
	TermsWritten atomic.Uint64
}

// Merge runs the full five/six-stage pipeline (admission, doc-id mapping,
// fieldnorms, postings, fast fields, stored docs) against segs, driving out
// via the given schema, and returns the merged segment's new_max_doc
// (spec.md §4.7). ctx is accepted but not read: it is neither attached to
// log lines nor used for cancellation, and the merge has no cancellation
// channel (spec.md §5).
func (m *Merger) Merge(ctx context.Context, logger *zap.Logger, segs []segment.Segment, schema *segment.Schema, out serialize.SegmentSerializer) (newMaxDoc uint32, progress *Progress, err error) {
	mergeID := uuid.Must(uuid.NewV4()).String()
	logger = logger.With(zap.String("merge_id", mergeID))
	start := time.Now()
	progress = &Progress{}

	logger.Info("Starting segment merge", zap.Int("num_segments", len(segs)))

	segFingerprints := make([]uint64, len(segs))
	for i, s := range segs {
		segFingerprints[i] = fingerprintSegment(s)
		logger.Debug("Input segment fingerprint", zap.Int("ordinal", i), zap.Uint64("fingerprint", segFingerprints[i]))
	}

	p, err := m.buildPlan(segs, schema)
	if err != nil {
		logger.Error("Failed to admit segments for merge", zap.Error(err))
		return 0, progress, err
	}
	logger.Info("Resolved merge plan",
		zap.Int("num_readers", len(p.readers)),
		zap.Bool("stacking", p.stacking),
		zap.Uint32("new_max_doc", p.newMaxDoc))

	if err := m.runFieldNorms(p, out, logger); err != nil {
		logger.Error("Failed merging fieldnorms", zap.Error(err))
		return 0, progress, err
	}

	docIDMaps := buildMergedDocIDMap(p)

	facetOrdMappings, err := m.runPostings(p, docIDMaps, out, logger, progress)
	if err != nil {
		logger.Error("Failed merging postings", zap.Error(err))
		return 0, progress, err
	}

	if err := mergeFastFields(p, docIDMaps, facetOrdMappings, out); err != nil {
		logger.Error("Failed merging fast fields", zap.Error(err))
		return 0, progress, err
	}

	if err := mergeStoredDocs(p, out); err != nil {
		logger.Error("Failed merging stored documents", zap.Error(err))
		return 0, progress, err
	}

	if err := out.Close(); err != nil {
		werr := segment.WrapError(segment.ErrIO, "close segment serializer", err)
		logger.Error("Failed closing segment serializer", zap.Error(werr))
		return 0, progress, werr
	}

	progress.DocsWritten.Store(uint64(p.newMaxDoc))
	logger.Info("Completed segment merge",
		zap.Uint32("new_max_doc", p.newMaxDoc),
		zap.Uint64("fingerprint", fingerprintMerge(segFingerprints, p.newMaxDoc)),
		zap.Duration("elapsed", time.Since(start)))
	return p.newMaxDoc, progress, nil
}

// buildPlan resolves §4.1 and §4.2: admits and orders readers, decides
// stacking vs. sorted mode, and materializes the DocIdMapping when sorted.
func (m *Merger) buildPlan(segs []segment.Segment, schema *segment.Schema) (*plan, error) {
	readers, bounds, err := admit(segs, schema, m.cfg)
	if err != nil {
		return nil, err
	}

	p := &plan{readers: readers, schema: schema}
	p.stacking = decideStacking(m.cfg, bounds)

	var total uint32
	for _, r := range readers {
		total += r.Reader.NumDocs()
	}
	p.newMaxDoc = total

	if !p.stacking {
		mapping, err := buildDocIDMapping(readers, m.cfg)
		if err != nil {
			return nil, err
		}
		p.docIDMap = mapping
	}
	return p, nil
}

// runFieldNorms drives §4.3 for every fieldnorm-carrying field in schema
// order (spec.md §5 "within postings, fields are written in schema order").
func (m *Merger) runFieldNorms(p *plan, out serialize.SegmentSerializer, logger *zap.Logger) error {
	for _, field := range p.schema.FieldNormFields() {
		if err := mergeFieldNorms(p, field, out); err != nil {
			return err
		}
		logger.Debug("Merged fieldnorms", zap.String("field", field))
	}
	return nil
}

// runPostings drives §4.4 for every indexed field, reopening each field's
// just-written fieldnorms for the posting writer's block-max metadata
// (spec.md §4.7) and collecting facet term-ordinal mappings for §4.5.
func (m *Merger) runPostings(p *plan, docIDMaps [][]segment.DocId, out serialize.SegmentSerializer, logger *zap.Logger, progress *Progress) (map[string]termOrdinalMapping, error) {
	facetOrdMappings := make(map[string]termOrdinalMapping)

	for _, field := range p.schema.IndexedFields() {
		entry, _ := p.schema.Field(field)
		fnormReaders := make([]segment.FieldNormsReader, len(p.readers))

		if entry.FieldNorms {
			for i, r := range p.readers {
				fnr, err := r.Reader.FieldNormsReader(field)
				if err != nil {
					fnormReaders[i] = nil
					continue
				}
				fnormReaders[i] = fnr
			}
		}

		var mergedFieldNorms segment.FieldNormsReader
		if entry.FieldNorms {
			fnr, err := out.ReopenFieldNorms(field)
			if err != nil {
				return nil, segment.WrapError(segment.ErrIO, "reopen fieldnorms for postings writer", err)
			}
			mergedFieldNorms = fnr
		}

		result, err := mergePostingsField(p, entry, docIDMaps, fnormReaders, mergedFieldNorms, out)
		if err != nil {
			return nil, err
		}
		if result.isFacet {
			facetOrdMappings[field] = result.termOrdMapping
		}
		progress.TermsWritten.Add(uint64(result.termsWritten))
		logger.Debug("Merged postings", zap.String("field", field), zap.Uint64("terms_written", uint64(result.termsWritten)))
	}
	return facetOrdMappings, nil
}
