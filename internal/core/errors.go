package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeInvalidRecipient   = "invalid_recipient"
	ErrCodeEmptyMessage       = "empty_message"
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnsupportedImage   = "unsupported_image"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeMessageNotFound    = "message_not_found"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeInternal           = "internal"
)

var (
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrEmptyMessage       = errors.New("message has neither text nor image")
	ErrInvalidPayload     = errors.New("message must carry text or image, not both")
	ErrUnsupportedImage   = errors.New("unsupported image")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrMessageNotFound    = errors.New("message not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnknownUser        = errors.New("unknown user")
	ErrSessionClosed      = errors.New("session closed")
	ErrSendBufferFull     = errors.New("send buffer full")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorFor maps an error returned by the core to its wire form.
func ErrorFor(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, ErrInvalidRecipient):
		return coreError(ErrCodeInvalidRecipient, ErrInvalidRecipient.Error())
	case errors.Is(err, ErrEmptyMessage):
		return coreError(ErrCodeEmptyMessage, ErrEmptyMessage.Error())
	case errors.Is(err, ErrInvalidPayload):
		return coreError(ErrCodeInvalidPayload, ErrInvalidPayload.Error())
	case errors.Is(err, ErrUnsupportedImage):
		return coreError(ErrCodeUnsupportedImage, err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnknownUser):
		return coreError(ErrCodeUnauthorized, ErrUnauthorized.Error())
	case errors.Is(err, ErrMessageNotFound):
		return coreError(ErrCodeMessageNotFound, ErrMessageNotFound.Error())
	case errors.Is(err, ErrStorageUnavailable):
		return coreError(ErrCodeStorageUnavailable, ErrStorageUnavailable.Error())
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}

func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
