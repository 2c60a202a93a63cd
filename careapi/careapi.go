// Package careapi wraps the booking backend's endpoints in typed services.
//
// Reads are retried through a retry.Executor. Mutations are retried too, but
// each call pins one Idempotency-Key for all of its attempts so the backend
// can discard duplicates. Inputs are validated before anything is sent.
package careapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mindhaven/carekit/httpclient"
	"github.com/mindhaven/carekit/logger"
	"github.com/mindhaven/carekit/retry"
	"github.com/mindhaven/carekit/session"
	"github.com/mindhaven/carekit/trace"
)

// API groups the backend services.
type API struct {
	Auth          *AuthService
	Clinicians    *ClinicianService
	Centres       *CentreService
	Appointments  *AppointmentService
	Payments      *PaymentService
	Notifications *NotificationService
}

// New builds every service on client. exec may be nil to use the default
// retry policy.
func New(client httpclient.Client, exec *retry.Executor, store session.Store, log logger.Logger) *API {
	if exec == nil {
		exec = retry.New(retry.DefaultPolicy(), retry.WithLogger(log))
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &caller{client: client, exec: exec, log: log}
	return &API{
		Auth:          &AuthService{c: c, store: store},
		Clinicians:    &ClinicianService{c: c},
		Centres:       &CentreService{c: c},
		Appointments:  &AppointmentService{c: c},
		Payments:      &PaymentService{c: c},
		Notifications: &NotificationService{c: c},
	}
}

// BookingContext loads the clinician, the centre and the day's slots
// concurrently. centreID may be empty for video consultations.
func (a *API) BookingContext(ctx context.Context, clinicianID, centreID, date string) (*BookingContext, error) {
	return loadBookingContext(ctx, a, clinicianID, centreID, date)
}

type caller struct {
	client httpclient.Client
	exec   *retry.Executor
	log    logger.Logger
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func decode[T any](resp *httpclient.Response) (T, error) {
	var env envelope[T]
	if len(resp.Body) == 0 {
		return env.Data, nil
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		var zero T
		return zero, fmt.Errorf("careapi: decode response: %w", err)
	}
	return env.Data, nil
}

// get issues a retried GET and decodes the data envelope.
func get[T any](ctx context.Context, c *caller, path string, query url.Values) (T, error) {
	return retry.Execute(ctx, c.exec, func(ctx context.Context) (T, error) {
		resp, err := c.client.Get(ctx, &httpclient.Request{Path: path, Query: query})
		if err != nil {
			var zero T
			return zero, err
		}
		return decode[T](resp)
	})
}

// send issues a retried mutation. All attempts share one idempotency key,
// reusing a key already pinned on ctx.
func send[T any](ctx context.Context, c *caller, method, path string, body any) (T, error) {
	var zero T
	req, err := httpclient.NewJSONRequest(method, path, body)
	if err != nil {
		return zero, err
	}
	key, ok := trace.IdempotencyKeyFromContext(ctx)
	if !ok {
		key = trace.NewIdempotencyKey()
		ctx = trace.WithIdempotencyKey(ctx, key)
	}
	c.log.Debug().Str("method", method).Str("path", path).Str("idempotency_key", key).Msg("Sending mutation")

	return retry.Execute(ctx, c.exec, func(ctx context.Context) (T, error) {
		resp, err := c.client.Send(ctx, req)
		if err != nil {
			return zero, err
		}
		return decode[T](resp)
	})
}

func pathFor(segments ...string) string {
	out := ""
	for _, s := range segments {
		out += "/" + url.PathEscape(s)
	}
	return out
}
