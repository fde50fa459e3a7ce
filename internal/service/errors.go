package service

import (
	"errors"
	"net/http"

	"github.com/whitecard/whitecard-backend/internal/i18n"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindConflict     ErrorKind = "conflict"
)

// DomainError is an expected failure the caller renders as a 4xx response.
// Anything else returned by a service is an internal error.
type DomainError struct {
	Kind      ErrorKind
	Status    int
	MessageID string
	// Data is echoed to the client next to the error, e.g. sign=false on scan.
	Data map[string]any
}

func (e *DomainError) Error() string {
	return string(e.Kind) + ": " + e.MessageID
}

func (e *DomainError) Code() string {
	return string(e.Kind)
}

func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func validationError(messageID string) *DomainError {
	return &DomainError{Kind: KindValidation, Status: http.StatusBadRequest, MessageID: messageID}
}

func notFoundError(status int, messageID string) *DomainError {
	return &DomainError{Kind: KindNotFound, Status: status, MessageID: messageID}
}

func unauthorizedError(messageID string) *DomainError {
	return &DomainError{Kind: KindUnauthorized, Status: http.StatusUnauthorized, MessageID: messageID}
}

func conflictError(status int, messageID string) *DomainError {
	return &DomainError{Kind: KindConflict, Status: status, MessageID: messageID}
}

func withSign(e *DomainError) *DomainError {
	e.Data = map[string]any{"sign": false}
	return e
}

func cardIdentityError() *DomainError {
	return withSign(unauthorizedError(i18n.MsgCardIdentityInvalid))
}

func cardNotFoundError() *DomainError {
	return withSign(notFoundError(http.StatusNotFound, i18n.MsgCardNotFound))
}

func cardInvalidError() *DomainError {
	return withSign(validationError(i18n.MsgCardInvalid))
}
