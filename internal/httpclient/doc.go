// Package httpclient builds and issues the load generator's HTTP requests.
//
// # Request Building
//
// A [RequestBuilder] is bound to one target base URL and turns sampled specs
// into requests:
//
//	builder, err := httpclient.NewRequestBuilder("http://localhost:8080")
//	req, err := builder.Build(ctx, spec)
//
// Booking specs become POST /api/v1/booking/initiate with a JSON body; search
// specs become GET /api/v1/search/flights with query parameters. Every request
// carries a fresh X-Request-ID.
//
// # HTTP Client
//
// [NewClient] creates a client with a pooled transport shared by all workers:
//
//	client := httpclient.NewClient(30*time.Second, httpclient.DefaultPoolOptions(10))
//
// # Requester
//
// [Requester.Do] issues one request and always returns a [metrics.Outcome];
// transport failures and timeouts are classified rather than returned as errors.
package httpclient
