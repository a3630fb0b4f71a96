// Package validate turns raw client input into typed requests. Every check is
// a pure function so create, query and ping share one rule set and one error
// taxonomy.
package validate

import "errors"

// Kind classifies a client input error.
type Kind string

const (
	MissingParameter    Kind = "MissingParameter"
	InvalidType         Kind = "InvalidType"
	LatitudeOutOfRange  Kind = "LatitudeOutOfRange"
	LongitudeOutOfRange Kind = "LongitudeOutOfRange"
	RadiusOutOfRange    Kind = "RadiusOutOfRange"
	PageOutOfRange      Kind = "PageOutOfRange"
	LimitOutOfRange     Kind = "LimitOutOfRange"
	ContentEmpty        Kind = "ContentEmpty"
	ContentTooLong      Kind = "ContentTooLong"
	InvalidDeviceID     Kind = "InvalidDeviceID"
)

// Error is a rejected input. Message is safe to show to clients.
type Error struct {
	Kind    Kind   `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

func fail(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, Message: msg}
}

// KindOf extracts the Kind of a validation error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}
