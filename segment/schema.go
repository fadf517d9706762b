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

package segment

// FieldType names the storage shape of a fast field's values; all numeric
// variants share a u64-backed column (spec.md 4.5).
type FieldType int

const (
	FieldU64 FieldType = iota
	FieldI64
	FieldF64
	FieldDate
	FieldText
	FieldBytes
	FieldFacet
)

func (t FieldType) String() string {
	switch t {
	case FieldU64:
		return "u64"
	case FieldI64:
		return "i64"
	case FieldF64:
		return "f64"
	case FieldDate:
		return "date"
	case FieldText:
		return "text"
	case FieldBytes:
		return "bytes"
	case FieldFacet:
		return "facet"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether t is backed by a single u64 column.
func (t FieldType) IsNumeric() bool {
	switch t {
	case FieldU64, FieldI64, FieldF64, FieldDate:
		return true
	default:
		return false
	}
}

// FieldEntry describes one schema field's indexing and storage configuration.
type FieldEntry struct {
	Name        string
	Type        FieldType
	Indexed     bool // has an inverted index (term dictionary + postings)
	FieldNorms  bool // carries a fieldnorm byte per doc
	Fast        bool // carries a fast (columnar) field
	MultiValued bool // fast field is multi-valued (two-stream offsets+values)
	Positions   bool // postings carry within-document term positions
}

// Schema is the ordered field list shared by every segment a merge reads and
// the segment it writes. Fields are written and iterated in schema order.
type Schema struct {
	Fields []FieldEntry
}

// Field looks up a field entry by name.
func (s *Schema) Field(name string) (FieldEntry, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldEntry{}, false
}

// FieldNormFields returns, in schema order, the fields that carry fieldnorms.
func (s *Schema) FieldNormFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.FieldNorms {
			out = append(out, f.Name)
		}
	}
	return out
}

// IndexedFields returns, in schema order, the fields with an inverted index.
func (s *Schema) IndexedFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Indexed {
			out = append(out, f.Name)
		}
	}
	return out
}

// FastFields returns, in schema order, the fields with a fast (columnar) field.
func (s *Schema) FastFields() []FieldEntry {
	var out []FieldEntry
	for _, f := range s.Fields {
		if f.Fast {
			out = append(out, f)
		}
	}
	return out
}
