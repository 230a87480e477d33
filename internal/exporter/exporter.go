// Package exporter mirrors recorded outcomes into Prometheus metrics and
// optionally serves them on /metrics while a run is in progress.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/flightload/internal/metrics"
)

const namespace = "flightload"

// LatencyBuckets are the request duration histogram buckets, in seconds.
var LatencyBuckets = []float64{
	0.001, 0.002, 0.004, 0.006, 0.008, 0.01, 0.02, 0.04, 0.06, 0.08, 0.1,
	0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 2.5, 5.0, 10.0, 30.0,
}

// Exporter is a metrics.Sink backed by its own Prometheus registry.
type Exporter struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// New creates an exporter whose series carry mode and run_id as constant
// labels.
func New(mode, runID string) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"mode": mode, "run_id": runID}

	return &Exporter{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "requests_total",
				Help:        "Requests issued, by outcome class and response code.",
				ConstLabels: constLabels,
			},
			[]string{"class", "code"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "request_duration_seconds",
				Help:        "Time until response headers arrived, by outcome class.",
				ConstLabels: constLabels,
				Buckets:     LatencyBuckets,
			},
			[]string{"class"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "errors_total",
				Help:        "Timeouts and transport errors, by kind.",
				ConstLabels: constLabels,
			},
			[]string{"kind"},
		),
	}
}

// Observe implements metrics.Sink.
func (e *Exporter) Observe(o metrics.Outcome) {
	class := o.Class.String()
	e.requests.WithLabelValues(class, o.Key()).Inc()
	e.latency.WithLabelValues(class).Observe(o.Latency.Seconds())
	if o.Class.IsError() || o.Err != nil {
		e.errors.WithLabelValues(metrics.ErrorKind(o)).Inc()
	}
}

// Registry returns the registry the exporter's collectors live in.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Server is a running /metrics listener.
type Server struct {
	srv     *http.Server
	ln      net.Listener
	stopped chan struct{}
	err     error // set before stopped is closed
}

// Serve starts listening on addr. The listener is bound before Serve returns
// so a bad address is reported as a setup error. The server stops when ctx is
// done or Shutdown is called.
func (e *Exporter) Serve(ctx context.Context, addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:      ln,
		stopped: make(chan struct{}),
	}
	go func() {
		defer close(s.stopped)
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.err = err
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.stopped:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// URL is the full /metrics URL of the server.
func (s *Server) URL() string {
	host, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return "http://" + s.Addr() + "/metrics"
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s/metrics", net.JoinHostPort(host, port))
}

// Shutdown stops the server and waits for it to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	<-s.stopped
	return s.err
}
