package metrics_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/torosent/flightload/internal/metrics"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code  int
		class metrics.Class
		ok    bool
	}{
		{200, metrics.Success, true},
		{299, metrics.Success, true},
		{400, metrics.ClientError, true},
		{409, metrics.ClientError, true},
		{500, metrics.ServerError, true},
		{599, metrics.ServerError, true},
		{101, metrics.TransportError, false},
		{304, metrics.TransportError, false},
	}
	for _, tt := range tests {
		class, ok := metrics.ClassifyStatus(tt.code)
		if class != tt.class || ok != tt.ok {
			t.Errorf("ClassifyStatus(%d) = %s,%v; want %s,%v", tt.code, class, ok, tt.class, tt.ok)
		}
	}
}

func TestClassifyError(t *testing.T) {
	wrapped := &url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}
	tests := []struct {
		name string
		err  error
		want metrics.Class
	}{
		{"deadline", context.DeadlineExceeded, metrics.Timeout},
		{"wrapped deadline", wrapped, metrics.Timeout},
		{"net timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, metrics.Timeout},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, metrics.TransportError},
		{"canceled", context.Canceled, metrics.TransportError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := metrics.ClassifyError(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestOutcomeKey(t *testing.T) {
	now := time.Now()
	if k := metrics.FromResponse(201, 0, now, "").Key(); k != "201" {
		t.Errorf("expected 201, got %s", k)
	}
	if k := metrics.FromError(context.DeadlineExceeded, 0, now, "").Key(); k != metrics.KeyTimeout {
		t.Errorf("expected TIMEOUT, got %s", k)
	}
	if k := metrics.FromError(errors.New("x"), 0, now, "").Key(); k != metrics.KeyError {
		t.Errorf("expected ERROR, got %s", k)
	}
}

func TestClassNames(t *testing.T) {
	want := []string{"success", "client_error", "server_error", "timeout", "transport_error"}
	for i, c := range metrics.Classes() {
		if c.String() != want[i] {
			t.Errorf("class %d: expected %s, got %s", i, want[i], c)
		}
	}
}

func TestErrorKind(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", &url.Error{Op: "Get", URL: "u", Err: context.DeadlineExceeded}, "Context deadline exceeded"},
		{"dial", &url.Error{Op: "Get", URL: "u", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, "Network dial error"},
		{"dns", &url.Error{Op: "Get", URL: "u", Err: &net.DNSError{Name: "nope"}}, "DNS lookup error"},
		{"status", &metrics.StatusError{StatusCode: 302}, "Unexpected status"},
		{"custom", fmt.Errorf("plain"), "Error String (errors)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := metrics.ErrorKind(metrics.FromError(tt.err, 0, now, ""))
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFriendlyErrorName(t *testing.T) {
	tests := map[string]string{
		"":                                "Unknown error",
		"*url.Error":                      "Request URL error",
		"*net.OpError":                    "Op Error (net)",
		"*tls.RecordHeaderError":          "Record Header Error (tls)",
		"context.deadlineExceededError":   "Context deadline exceeded",
		"*github.com/x/y.HTTPStatusError": "HTTP Status Error (y)",
	}
	for in, want := range tests {
		if got := metrics.FriendlyErrorName(in); got != want {
			t.Errorf("FriendlyErrorName(%q) = %q, want %q", in, got, want)
		}
	}
}
