package message

import "errors"

var (
	// ErrInvalidJSON indicates the callback body is not a JSON object.
	ErrInvalidJSON = errors.New("callback payload is not valid json")
	// ErrMalformedPayload indicates a field required for normalization is absent.
	ErrMalformedPayload = errors.New("malformed callback payload")
)
