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

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// ErrKind is the closed set of error categories a merge can fail with.
type ErrKind int

const (
	// ErrInternal covers invariants that should never be violated by a
	// correct caller; in the source implementation these are panics.
	ErrInternal ErrKind = iota
	ErrInvalidArgument
	ErrDataCorruption
	ErrSchemaError
	ErrIO
)

// Code maps an ErrKind onto a gRPC status code, reusing the teacher's own
// vendored google.golang.org/grpc/codes enum rather than inventing one.
func (k ErrKind) Code() codes.Code {
	switch k {
	case ErrInvalidArgument:
		return codes.InvalidArgument
	case ErrDataCorruption:
		return codes.DataLoss
	case ErrSchemaError:
		return codes.FailedPrecondition
	case ErrIO:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func (k ErrKind) String() string {
	switch k {
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrDataCorruption:
		return "data_corruption"
	case ErrSchemaError:
		return "schema_error"
	case ErrIO:
		return "io"
	default:
		return "internal"
	}
}

// MergeError wraps a caller-facing message and kind around an optional cause,
// mirroring server/db_error.go's statusError: a typed, kind-tagged error the
// orchestrator can branch on without string matching.
type MergeError struct {
	kind  ErrKind
	msg   string
	cause error
}

func (e *MergeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *MergeError) Unwrap() error { return e.cause }

func (e *MergeError) Kind() ErrKind { return e.kind }

func (e *MergeError) Code() codes.Code { return e.kind.Code() }

// NewError builds a MergeError with no wrapped cause.
func NewError(kind ErrKind, msg string) error {
	return &MergeError{kind: kind, msg: msg}
}

// NewErrorf builds a MergeError with a formatted message.
func NewErrorf(kind ErrKind, format string, args ...any) error {
	return &MergeError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WrapError wraps cause under kind and msg. Returns nil if cause is nil.
func WrapError(kind ErrKind, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &MergeError{kind: kind, msg: msg, cause: cause}
}

// KindOf extracts the ErrKind from err, defaulting to ErrInternal for errors
// that were never tagged (e.g. a bare error bubbled up from a reader).
func KindOf(err error) ErrKind {
	var me *MergeError
	if errors.As(err, &me) {
		return me.kind
	}
	return ErrInternal
}
