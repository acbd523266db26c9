/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors defines the abstract error taxonomy of the control plane
// so the HTTP layer can map any error returned by a registry or
// scheduler to a status code without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Kind is one of the abstract error kinds from the error-handling design.
type Kind string

const (
	KindNotFound             Kind = "NotFound"
	KindAlreadyExists        Kind = "AlreadyExists"
	KindInvalidInput         Kind = "InvalidInput"
	KindInsufficientResource Kind = "InsufficientResources"
	KindNoFeasibleNode       Kind = "NoFeasibleNode"
	KindStoreUnavailable     Kind = "StoreUnavailable"
	KindRuntimeFailure       Kind = "RuntimeFailure"
	KindInternal             Kind = "Internal"
)

var httpStatus = map[Kind]int{
	KindNotFound:             http.StatusNotFound,
	KindAlreadyExists:        http.StatusConflict,
	KindInvalidInput:         http.StatusBadRequest,
	KindInsufficientResource: http.StatusConflict,
	KindNoFeasibleNode:       http.StatusConflict,
	KindStoreUnavailable:     http.StatusServiceUnavailable,
	KindRuntimeFailure:       http.StatusOK,
	KindInternal:             http.StatusInternalServerError,
}

// Error is a typed control-plane error. Internal errors carry a correlation
// ID instead of the underlying cause so it never leaks to a client.
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	cause         error
}

func (e *Error) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s: %s (correlation_id=%s)", e.Kind, e.Message, e.CorrelationID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the HTTP status this error maps to.
func (e *Error) Code() int {
	if code, ok := httpStatus[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func AlreadyExists(format string, args ...any) *Error {
	return newf(KindAlreadyExists, format, args...)
}

func InvalidInput(format string, args ...any) *Error {
	return newf(KindInvalidInput, format, args...)
}

func InsufficientResources(format string, args ...any) *Error {
	return newf(KindInsufficientResource, format, args...)
}

func NoFeasibleNode(format string, args ...any) *Error {
	return newf(KindNoFeasibleNode, format, args...)
}

func StoreUnavailable(cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: "store unavailable after retries", cause: cause}
}

func RuntimeFailure(format string, args ...any) *Error {
	return newf(KindRuntimeFailure, format, args...)
}

// Internal wraps an unexpected error behind a correlation ID. The caller's
// log line should include the real cause; the returned error must not.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", CorrelationID: uuid.NewString(), cause: cause}
}

// Is reports whether err is (or wraps) a control-plane error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
