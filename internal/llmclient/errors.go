// File: internal/llmclient/errors.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is a structured failure category reported by LLM clients. The shell's
// hint classifier matches on these before falling back to message text.
type Kind string

const (
	KindAuth     Kind = "AUTH"
	KindNetwork  Kind = "NETWORK"
	KindTimeout  Kind = "TIMEOUT"
	KindProtocol Kind = "PROTOCOL"
)

// Error wraps a provider failure with its structured Kind. The original
// message is preserved verbatim through Unwrap/Error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classifyHTTPStatus maps an HTTP status to a Kind.
func classifyHTTPStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindProtocol
	}
}

// classifyTransportErr maps a transport-level error to a Kind.
func classifyTransportErr(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
