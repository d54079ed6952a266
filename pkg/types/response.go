// Package types defines the JSON envelopes the terminal's status API speaks.
// Every response body is one of the two shapes here, so the register frontend
// can switch on a single structure.
package types

// SuccessEnvelope wraps every 2xx payload under a data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. Message is safe to show on the register
// screen; internal detail stays in the terminal log.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError under an error key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
