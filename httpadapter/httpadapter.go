// Package httpadapter implements the HTTP Request Adapter: a one-shot
// bridge between a net/http request and a component's
// incoming-request/response-outparam resource contract, injecting CORS
// headers on success and surfacing a trap-equivalent error if the
// component never calls set on its outparam.
package httpadapter

import (
	"context"
	"net/http"

	"github.com/hayride-dev/hayride/herr"
)

// Request is the host-side view of an incoming request, pushed into the
// component's Store as its incoming-request resource.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// NewRequest captures an *http.Request's method/URL/headers/body as a
// Request value, the "incoming-request resource".
func NewRequest(r *http.Request, body []byte) Request {
	return Request{Method: r.Method, URL: r.URL.String(), Headers: r.Header.Clone(), Body: body}
}

// Response is what the component's handle() produces by calling set on its
// response-outparam.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Outparam is a one-shot channel the component's handle() must call Set on
// before returning: a response-outparam resource linked to a oneshot
// channel.
type Outparam struct {
	ch chan Response
}

// NewOutparam constructs an unset Outparam.
func NewOutparam() *Outparam {
	return &Outparam{ch: make(chan Response, 1)}
}

// Set delivers resp to the adapter awaiting this outparam. Calling Set more
// than once is a no-op; only the first call is observed.
func (o *Outparam) Set(resp Response) {
	select {
	case o.ch <- resp:
	default:
	}
}

// Handler is the component's handle(request, outparam) entry point, run as
// a task by Handle.
type Handler func(ctx context.Context, req Request, out *Outparam) error

// corsHeaders are injected on every successful response.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type, Authorization",
}

// Handle drives the five-step request-handling algorithm for one request:
// spawn handler as a task, await the outparam channel, and either return
// the response with CORS headers attached or propagate the handler's
// error, including a "guest never invoked response-outparam::set" message
// when the handler returns without calling Set.
func Handle(ctx context.Context, req Request, handler Handler) (Response, error) {
	out := NewOutparam()
	taskErr := make(chan error, 1)

	go func() {
		taskErr <- handler(ctx, req, out)
	}()

	select {
	case resp := <-out.ch:
		for k, v := range corsHeaders {
			if resp.Headers == nil {
				resp.Headers = http.Header{}
			}
			resp.Headers.Set(k, v)
		}
		return resp, nil
	case err := <-taskErr:
		if err != nil {
			return Response{}, err
		}
		// Task completed without ever calling Set.
		select {
		case resp := <-out.ch:
			for k, v := range corsHeaders {
				if resp.Headers == nil {
					resp.Headers = http.Header{}
				}
				resp.Headers.Set(k, v)
			}
			return resp, nil
		default:
			return Response{}, herr.New(herr.CapHTTP, herr.KindRuntimeError, "", "guest never invoked response-outparam::set")
		}
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}
