// Package types holds the public API wire types.
package types

import "time"

// Data sources reported in the success envelope.
const (
	SourceUpstream = "upstream"
	SourceFallback = "fallback"
)

// Error codes reported in the error envelope.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeUnauthorized    = "unauthorized"
	CodeRateLimited     = "rate_limited"
	CodeNotFound        = "not_found"
	CodeUpstreamTimeout = "upstream_timeout"
	CodeUpstreamError   = "upstream_error"
	CodeInternal        = "internal_server_error"
	CodeGatewayTimeout  = "gateway_timeout"
	CodePayloadTooLarge = "payload_too_large"
)

type Envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Source    string     `json:"source,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339) }

func Success(data any, source string) Envelope {
	return Envelope{Success: true, Data: data, Source: source, Timestamp: timestamp()}
}

func Failure(code, message string) Envelope {
	return Envelope{Error: &ErrorBody{Code: code, Message: message}, Timestamp: timestamp()}
}
