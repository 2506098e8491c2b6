package invoice

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
)

// Error is a failed payment-provider call. It is logged by callers and
// never fails a shipment.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("invoice %s failed (%d %s): %v", e.Op, e.StatusCode, e.Code, e.Cause)
	}
	return fmt.Sprintf("invoice %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the provider was unavailable rather than
// rejecting the request.
func (e *Error) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

var (
	// ErrInvalidSignature indicates a webhook whose signature did not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMalformedEvent indicates a verified webhook whose event could not
	// be decoded.
	ErrMalformedEvent = errors.New("malformed webhook event")

	// ErrInvalidAmount indicates a non-positive invoice amount.
	ErrInvalidAmount = errors.New("invoice amount must be positive")

	// ErrMissingEmail indicates a contact without an email address.
	ErrMissingEmail = errors.New("invoice contact has no email")
)

// wrapError converts stripe errors into Error so stripe types do not leak
// past this package.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	out := &Error{Op: op, Cause: err}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		out.StatusCode = stripeErr.HTTPStatusCode
		out.Code = string(stripeErr.Code)
		if out.Code == "" {
			out.Code = string(stripeErr.Type)
		}
	}
	return out
}
