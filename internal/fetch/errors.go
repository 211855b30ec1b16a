package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies why an upstream fetch failed.
type Kind int

const (
	// KindUnreachable: the request never completed (DNS, refused, reset, cancelled).
	KindUnreachable Kind = iota + 1
	// KindTimeout: no response within the fixed bound.
	KindTimeout
	// KindUpstreamStatus: the upstream answered with a non-2xx status.
	KindUpstreamStatus
	// KindMalformed: the body could not be read or is not JSON.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching on *Error kinds.
var (
	ErrUnreachable    = errors.New("upstream unreachable")
	ErrTimeout        = errors.New("upstream timeout")
	ErrUpstreamStatus = errors.New("upstream error status")
	ErrMalformed      = errors.New("malformed upstream response")
)

// Error is returned by Gateway.Fetch for every failed fetch.
type Error struct {
	Kind   Kind
	Status int // set for KindUpstreamStatus
	URL    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("fetch: ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " %d", e.Status)
	}
	if e.URL != "" {
		b.WriteString(" (")
		b.WriteString(e.URL)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrUpstreamStatus:
		return e.Kind == KindUpstreamStatus
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// KindOf extracts the failure kind from err.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// classifyTransportError maps an http.Client.Do error to a Kind.
func classifyTransportError(err error) Kind {
	if isTimeout(err) {
		return KindTimeout
	}
	return KindUnreachable
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// truncate limits string length for logging and error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
