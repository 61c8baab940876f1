package domain

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable classification of a core failure. The UI
// renders failures from {kind, message} pairs and never invents new kinds.
type Kind string

const (
	KindNotFound             Kind = "not-found"
	KindAccessDenied         Kind = "access-denied"
	KindUploadForbidden      Kind = "upload-forbidden"
	KindNameConflict         Kind = "name-conflict"
	KindConflict             Kind = "conflict"
	KindInvalidName          Kind = "invalid-name"
	KindIntegrityMismatch    Kind = "integrity-mismatch"
	KindContentMissing       Kind = "content-missing"
	KindStorageIO            Kind = "storage-io"
	KindDeadlineExceeded     Kind = "deadline-exceeded"
	KindConfigurationInvalid Kind = "configuration-invalid"
	KindNotReady             Kind = "not-ready"
)

// Error couples a Kind with a human-readable message. It matches sentinel
// errors of the same kind under errors.Is, so callers can branch on kind
// without caring whether a bare sentinel or a wrapped Error was returned.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is reports whether target is an error of the same kind.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return de.Kind == e.Kind
	}
	return false
}

// Errf builds an Error with a formatted message.
func Errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAccessDenied         = &Error{Kind: KindAccessDenied, Message: "access denied"}
	ErrUploadForbidden      = &Error{Kind: KindUploadForbidden, Message: "upload not permitted"}
	ErrNameConflict         = &Error{Kind: KindNameConflict, Message: "name already exists"}
	ErrConflict             = &Error{Kind: KindConflict, Message: "conflicting state"}
	ErrInvalidName          = &Error{Kind: KindInvalidName, Message: "invalid name"}
	ErrIntegrityMismatch    = &Error{Kind: KindIntegrityMismatch, Message: "checksum mismatch"}
	ErrContentMissing       = &Error{Kind: KindContentMissing, Message: "stored content is missing"}
	ErrStorageIO            = &Error{Kind: KindStorageIO, Message: "storage i/o failure"}
	ErrDeadlineExceeded     = &Error{Kind: KindDeadlineExceeded, Message: "operation deadline exceeded"}
	ErrConfigurationInvalid = &Error{Kind: KindConfigurationInvalid, Message: "invalid storage configuration"}
	ErrNotReady             = &Error{Kind: KindNotReady, Message: "directory root has not been seeded"}
)

// KindOf extracts the Kind from err, or KindStorageIO for unclassified errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStorageIO
}
