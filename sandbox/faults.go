package sandbox

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

// Faults scripts failures and records traffic. Routes are keyed by method
// and echo route pattern, e.g. "GET /clinicians/:id".
type Faults struct {
	mu       sync.Mutex
	scripts  map[string][]int
	revoked  map[string]bool
	requests map[string][]RecordedRequest
}

// RecordedRequest is what the sandbox saw of one call.
type RecordedRequest struct {
	RequestID      string
	IdempotencyKey string
	Authorization  string
	Status         int
}

func newFaults() *Faults {
	return &Faults{
		scripts:  map[string][]int{},
		revoked:  map[string]bool{},
		requests: map[string][]RecordedRequest{},
	}
}

// Script makes the next len(statuses) calls to route answer with those
// statuses, in order, before normal handling resumes.
func (f *Faults) Script(route string, statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[route] = append(f.scripts[route], statuses...)
}

// Revoke makes token answer 401 from now on.
func (f *Faults) Revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[token] = true
}

// Requests returns every call recorded for route.
func (f *Faults) Requests(route string) []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests[route]...)
}

// Hits counts calls to route, including scripted failures.
func (f *Faults) Hits(route string) int {
	return len(f.Requests(route))
}

// Reset drops scripts, revocations and recorded traffic.
func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.scripts)
	clear(f.revoked)
	clear(f.requests)
}

func (f *Faults) isRevoked(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[token]
}

func (f *Faults) next(route string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	script := f.scripts[route]
	if len(script) == 0 {
		return 0, false
	}
	f.scripts[route] = script[1:]
	return script[0], true
}

func (f *Faults) record(route string, r RecordedRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[route] = append(f.requests[route], r)
}

// middleware records each call and serves scripted statuses.
func (f *Faults) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := req.Method + " " + c.Path()

			var err error
			if status, ok := f.next(route); ok {
				err = &APIError{Status: status, Message: "injected fault: " + http.StatusText(status)}
			} else {
				err = next(c)
			}

			status := c.Response().Status
			if err != nil {
				status = toAPIError(err).Status
			}
			f.record(route, RecordedRequest{
				RequestID:      req.Header.Get(echo.HeaderXRequestID),
				IdempotencyKey: req.Header.Get(HeaderIdempotencyKey),
				Authorization:  req.Header.Get(echo.HeaderAuthorization),
				Status:         status,
			})
			return err
		}
	}
}
