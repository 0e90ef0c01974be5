package reliability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
)

// Failure reasons used as metric labels and log fields.
const (
	ReasonTimeout   = "timeout"
	ReasonCanceled  = "canceled"
	ReasonNetwork   = "network"
	ReasonStatus4xx = "status_4xx"
	ReasonStatus5xx = "status_5xx"
	ReasonDecode    = "decode"
	ReasonUnknown   = "unknown"
)

// StatusError reports a non-2xx answer from an HTTP endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "API responded with status: " + strconv.Itoa(e.Code)
}

// DecodeError wraps a body that could not be decoded as a dialogue payload.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// IsRetryableHTTPStatus classifies transient HTTP status codes. Nothing is
// retried automatically; the flag tells the user a resend may work.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ClassifyFailure maps a transport error to a coarse reason.
func ClassifyFailure(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code >= 500 {
			return ReasonStatus5xx
		}
		return ReasonStatus4xx
	}
	var decodeErr *DecodeError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &decodeErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ReasonDecode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}
	return ReasonUnknown
}

// Retryable reports whether a resend of the same turn might succeed.
func Retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableHTTPStatus(statusErr.Code)
	}
	switch ClassifyFailure(err) {
	case ReasonTimeout, ReasonNetwork:
		return true
	default:
		return false
	}
}
