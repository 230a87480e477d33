package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Class is the classification of one request attempt.
type Class int

const (
	Success Class = iota
	ClientError
	ServerError
	Timeout
	TransportError

	numClasses
)

var classNames = [numClasses]string{
	Success:        "success",
	ClientError:    "client_error",
	ServerError:    "server_error",
	Timeout:        "timeout",
	TransportError: "transport_error",
}

var classLabels = [numClasses]string{
	Success:        "2XX (Success)",
	ClientError:    "4XX (Client Error)",
	ServerError:    "5XX (Server Error)",
	Timeout:        "Timeout",
	TransportError: "Transport Error",
}

// Histogram keys for outcomes that carry no status code.
const (
	KeyTimeout = "TIMEOUT"
	KeyError   = "ERROR"
)

// Classes lists every class in report order.
func Classes() []Class {
	return []Class{Success, ClientError, ServerError, Timeout, TransportError}
}

func (c Class) String() string {
	if c < 0 || c >= numClasses {
		return "unknown"
	}
	return classNames[c]
}

// Label is the human-facing name used in console summaries.
func (c Class) Label() string {
	if c < 0 || c >= numClasses {
		return "Unknown"
	}
	return classLabels[c]
}

// IsError reports whether the class represents a failure to get any HTTP
// response at all. Such outcomes also produce an ErrorRecord.
func (c Class) IsError() bool {
	return c == Timeout || c == TransportError
}

// StatusError marks a response whose status falls outside the 2xx, 4xx and 5xx
// ranges. It is classified as a transport error.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	text := http.StatusText(e.StatusCode)
	if text == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, text)
}

// Outcome is the immutable record of one request attempt.
type Outcome struct {
	Class      Class
	StatusCode int // 0 when no response was received
	Latency    time.Duration
	IssuedAt   time.Time
	Err        error  // set for Timeout and TransportError
	Request    string // description of the request, for error records
}

// Key returns the histogram key: the status code when a response arrived,
// TIMEOUT or ERROR otherwise.
func (o Outcome) Key() string {
	if o.StatusCode > 0 {
		return strconv.Itoa(o.StatusCode)
	}
	if o.Class == Timeout {
		return KeyTimeout
	}
	return KeyError
}

// LatencyMs returns the latency in fractional milliseconds.
func (o Outcome) LatencyMs() float64 {
	return float64(o.Latency) / float64(time.Millisecond)
}

// ClassifyStatus maps an HTTP status code to a class. ok is false for codes
// outside the 2xx, 4xx and 5xx ranges.
func ClassifyStatus(code int) (class Class, ok bool) {
	switch {
	case code >= 200 && code < 300:
		return Success, true
	case code >= 400 && code < 500:
		return ClientError, true
	case code >= 500 && code < 600:
		return ServerError, true
	default:
		return TransportError, false
	}
}

// ClassifyError maps a request failure to Timeout or TransportError.
func ClassifyError(err error) Class {
	if err == nil {
		return TransportError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return TransportError
}

// FromResponse builds the outcome of a request that received a response.
func FromResponse(status int, latency time.Duration, issuedAt time.Time, request string) Outcome {
	class, ok := ClassifyStatus(status)
	o := Outcome{
		Class:      class,
		StatusCode: status,
		Latency:    latency,
		IssuedAt:   issuedAt,
		Request:    request,
	}
	if !ok {
		o.Err = &StatusError{StatusCode: status}
	}
	return o
}

// FromError builds the outcome of a request that failed before a response
// arrived.
func FromError(err error, latency time.Duration, issuedAt time.Time, request string) Outcome {
	return Outcome{
		Class:    ClassifyError(err),
		Latency:  latency,
		IssuedAt: issuedAt,
		Err:      err,
		Request:  request,
	}
}
