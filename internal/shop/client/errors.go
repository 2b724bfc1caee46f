package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Error classes. Every failed call wraps exactly one of these or is an *HTTPError.
var (
	ErrConnection = errors.New("connection error")
	ErrTimeout    = errors.New("request timed out")
	ErrRequest    = errors.New("request error")
)

const (
	ClassHTTP       = "http"
	ClassConnection = "connection"
	ClassTimeout    = "timeout"
	ClassRequest    = "request"
)

// HTTPError is returned when the server answered with a non-2xx status.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	kind := "Client Error"
	if e.StatusCode >= 500 {
		kind = "Server Error"
	}
	msg := fmt.Sprintf("%d %s for url: %s %s", e.StatusCode, kind, e.Method, e.URL)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Classify names the class of an error produced by this package.
func Classify(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &httpErr):
		return ClassHTTP
	case errors.Is(err, ErrTimeout):
		return ClassTimeout
	case errors.Is(err, ErrConnection):
		return ClassConnection
	default:
		return ClassRequest
	}
}

func wrapTransport(method, url string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", transportClass(err), method, url, err)
}

func transportClass(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ErrConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection
	}
	return ErrRequest
}
