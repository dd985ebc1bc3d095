package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrorKind classifies service failures for the transport layer.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindDuplicate       ErrorKind = "duplicate"
	KindNotFound        ErrorKind = "not_found"
	KindForbidden       ErrorKind = "forbidden"
	KindConsistency     ErrorKind = "consistency"
	KindOperationFailed ErrorKind = "operation_failed"
)

// ServiceError is returned by every service operation that fails.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == kind
}

// KindOf returns the kind of err, or KindOperationFailed for foreign errors.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOperationFailed
}

func newValidationError(message string) *ServiceError {
	return &ServiceError{Kind: KindValidation, Message: message}
}

func newDuplicateError(message string) *ServiceError {
	return &ServiceError{Kind: KindDuplicate, Message: message}
}

func newNotFoundError(message string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Message: message}
}

func newForbiddenError(message string) *ServiceError {
	return &ServiceError{Kind: KindForbidden, Message: message}
}

func newConsistencyError(message string, cause error) *ServiceError {
	return &ServiceError{Kind: KindConsistency, Message: message, Cause: cause}
}

func newOperationFailed(message string, cause error) *ServiceError {
	return &ServiceError{Kind: KindOperationFailed, Message: message, Cause: cause}
}

// mapStoreError converts a repository error at the service boundary.
// notFound is used as the message for gorm.ErrRecordNotFound.
func mapStoreError(err error, notFound, failed string) error {
	var se *ServiceError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return se
	case errors.Is(err, gorm.ErrRecordNotFound):
		return newNotFoundError(notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &ServiceError{Kind: KindDuplicate, Message: failed, Cause: err}
	}
	return newOperationFailed(failed, err)
}
