package domain

import (
	"errors"
	"fmt"
)

var (
	ErrVerificationFailed = errors.New("message signature verification failed")
	ErrUnknownSigner      = errors.New("sender domain has no registered public key")
	ErrEmptyWritePayload  = errors.New("nothing to write: no identifiers and no preferences")
	ErrMissingReturnURL   = errors.New("returnUrl query parameter is mandatory")
	ErrMalformedData      = errors.New("malformed exchange payload")
)

// UpstreamError is an error the operator itself reported inside a redirect
// response. It is propagated as-is, never reinterpreted as missing data.
type UpstreamError struct {
	Payload ErrorPayload
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("operator reported error: %s", e.Payload.Message)
}
