package httpclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/flightload/internal/metrics"
	"github.com/torosent/flightload/internal/sampler"
	"github.com/torosent/flightload/internal/tracing"
)

// DefaultTimeout bounds a single request when none is configured.
const DefaultTimeout = 30 * time.Second

// RequesterOptions configures a Requester.
type RequesterOptions struct {
	Client  *http.Client
	Builder *RequestBuilder
	Timeout time.Duration
	// Tracer starts one client span per request. Nil disables tracing.
	Tracer trace.Tracer
	// Propagate injects W3C trace context headers into outgoing requests.
	Propagate bool
}

// Requester issues sampled requests and classifies what comes back.
type Requester struct {
	client    *http.Client
	builder   *RequestBuilder
	timeout   time.Duration
	tracer    trace.Tracer
	propagate bool
}

func NewRequester(opts RequesterOptions) (*Requester, error) {
	if opts.Builder == nil {
		return nil, errors.New("request builder is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = NewClient(opts.Timeout, PoolOptions{})
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("flightload")
	}
	return &Requester{
		client:    opts.Client,
		builder:   opts.Builder,
		timeout:   opts.Timeout,
		tracer:    opts.Tracer,
		propagate: opts.Propagate,
	}, nil
}

// Do issues the request for spec and returns exactly one Outcome. It never
// returns an error: failures are Timeout or TransportError outcomes.
//
// The request is detached from ctx's cancellation so a run being stopped does
// not abort requests already in flight; only the per-request timeout bounds it.
func (r *Requester) Do(ctx context.Context, spec sampler.Spec) metrics.Outcome {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	desc := "<nil>"
	mode := ""
	if spec != nil {
		desc = spec.String()
		mode = spec.Mode()
	}

	reqCtx, span := tracing.StartRequestSpan(reqCtx, r.tracer, "http", mode)
	issued := time.Now()

	req, err := r.builder.Build(reqCtx, spec)
	if err != nil {
		o := metrics.FromError(err, time.Since(issued), issued, desc)
		tracing.EndSpan(span, err)
		return o
	}
	if r.propagate {
		tracing.InjectHTTPHeaders(reqCtx, req.Header)
	}
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL.String()),
		attribute.String("flightload.request_id", req.Header.Get(RequestIDHeader)),
	)

	resp, err := r.client.Do(req)
	latency := time.Since(issued)
	if err != nil {
		o := metrics.FromError(err, latency, issued, desc)
		tracing.EndSpan(span, err, attribute.String("flightload.outcome", o.Class.String()))
		return o
	}
	drain(resp.Body)

	o := metrics.FromResponse(resp.StatusCode, latency, issued, desc)
	var spanErr error
	if o.Class != metrics.Success {
		spanErr = o.Err
		if spanErr == nil {
			spanErr = errors.New(http.StatusText(resp.StatusCode))
		}
	}
	tracing.EndSpan(span, spanErr,
		attribute.Int("http.response.status_code", resp.StatusCode),
		attribute.String("flightload.outcome", o.Class.String()),
	)
	return o
}
