package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransportError indicates the request never produced a response.
type TransportError struct {
	Err     error
	Timeout bool
}

func (e TransportError) Error() string {
	if e.Timeout {
		return fmt.Errorf("timeout: %w", e.Err).Error()
	}
	return fmt.Errorf("transport: %w", e.Err).Error()
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError indicates the endpoint answered with a non-200 status.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e HTTPStatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Errorf("http status %d: %w", e.StatusCode, e.Err).Error()
}

func (e HTTPStatusError) Unwrap() error {
	return e.Err
}

// DecodeError indicates the response body was not valid JSON.
type DecodeError struct {
	Err error
}

func (e DecodeError) Error() string {
	return fmt.Errorf("decode: %w", e.Err).Error()
}

func (e DecodeError) Unwrap() error {
	return e.Err
}

// ErrorTypeLabel maps a crawl error to a short metrics label.
func ErrorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var transport TransportError
	if errors.As(err, &transport) {
		if transport.Timeout {
			return "timeout"
		}
		return "connection"
	}
	var status HTTPStatusError
	if errors.As(err, &status) {
		switch status.StatusCode {
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		default:
			return "http_status"
		}
	}
	var decode DecodeError
	if errors.As(err, &decode) {
		return "decode"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "other"
}

// classifyError wraps a raw fetch failure into one of the crawl error types.
// statusCode is zero when no response was received.
func classifyError(err error, statusCode int) error {
	if err == nil && (statusCode == 0 || statusCode == http.StatusOK) {
		return nil
	}

	if statusCode != 0 && statusCode != http.StatusOK {
		return HTTPStatusError{StatusCode: statusCode, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TransportError{Err: err, Timeout: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportError{Err: err, Timeout: true}
	}
	return TransportError{Err: err}
}
