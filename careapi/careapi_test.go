package careapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindhaven/carekit/careapi"
	"github.com/mindhaven/carekit/httpclient"
	"github.com/mindhaven/carekit/retry"
	"github.com/mindhaven/carekit/sandbox"
	"github.com/mindhaven/carekit/session"
)

const (
	testPhone = "+919876543210"
	testDate  = "2030-03-04"
)

type env struct {
	api     *careapi.API
	sb      *sandbox.Server
	store   *session.MemoryStore
	expired atomic.Int32
}

func noWait(context.Context, time.Duration) error { return nil }

func newEnv(t *testing.T, policy retry.Policy, opts ...retry.Option) *env {
	t.Helper()
	now := time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)
	sb := sandbox.New(sandbox.Config{}, nil, sandbox.WithClock(func() time.Time { return now }))
	srv := httptest.NewServer(sb.Handler())
	t.Cleanup(srv.Close)

	e := &env{sb: sb, store: session.NewMemoryStore()}
	client, err := httpclient.NewBuilder(nil).
		WithBaseURL(srv.URL).
		WithSession(e.store).
		WithAuthObserver(httpclient.AuthObserverFunc(func(context.Context, *httpclient.ClassifiedError) {
			e.expired.Add(1)
		})).
		Build()
	require.NoError(t, err)

	if len(opts) == 0 {
		opts = []retry.Option{retry.WithSleeper(noWait)}
	}
	exec := retry.New(policy, opts...)
	e.api = careapi.New(client, exec, e.store, nil)
	return e
}

func (e *env) signIn(t *testing.T) *session.Session {
	t.Helper()
	ctx := context.Background()
	_, err := e.api.Auth.SendOTP(ctx, testPhone)
	require.NoError(t, err)
	sess, err := e.api.Auth.VerifyOTP(ctx, testPhone, sandbox.DefaultOTP)
	require.NoError(t, err)
	return sess
}

func TestSignInStoresSession(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())
	ctx := context.Background()

	challenge, err := e.api.Auth.SendOTP(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, testPhone, challenge.Phone)
	assert.Positive(t, challenge.ExpiresIn)

	sess, err := e.api.Auth.VerifyOTP(ctx, testPhone, sandbox.DefaultOTP)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	stored, err := e.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.Token, stored.Token)

	user, err := e.api.Auth.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, testPhone, user.Phone)
}

func TestWrongOTPIsClientError(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())
	ctx := context.Background()
	_, err := e.api.Auth.SendOTP(ctx, testPhone)
	require.NoError(t, err)

	_, err = e.api.Auth.VerifyOTP(ctx, testPhone, "000000")
	require.Error(t, err)
	ce, ok := httpclient.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, httpclient.ClientRequestError, ce.Kind())
	assert.Equal(t, map[string]string{"otp": "is incorrect"}, ce.FieldErrors())
	assert.Equal(t, 1, e.sb.Faults().Hits("POST /auth/otp/verify"), "client errors are not retried")

	_, err = e.store.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestInputValidationSendsNothing(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		field string
		route string
	}{
		{"phone", func() error { _, err := e.api.Auth.SendOTP(ctx, "98765"); return err }, "phone", "POST /auth/otp/send"},
		{"otp", func() error { _, err := e.api.Auth.VerifyOTP(ctx, testPhone, "12ab"); return err }, "otp", "POST /auth/otp/verify"},
		{"date", func() error { _, err := e.api.Clinicians.Slots(ctx, "cl-001", "04/03/2030"); return err }, "date", "GET /clinicians/:id/slots"},
		{"mode", func() error {
			_, err := e.api.Appointments.Book(ctx, careapi.BookingRequest{ClinicianID: "cl-001", SlotID: "s", Mode: "phone"})
			return err
		}, "mode", "POST /appointments"},
		{"centre", func() error {
			_, err := e.api.Appointments.Book(ctx, careapi.BookingRequest{ClinicianID: "cl-001", SlotID: "s", Mode: careapi.ModeInPerson})
			return err
		}, "centreId", "POST /appointments"},
		{"signature", func() error { _, err := e.api.Payments.Verify(ctx, "order_1", "pay_1", "not-hex"); return err }, "signature", "POST /payments/verify"},
		{"whatsapp", func() error { _, err := e.api.Notifications.SendWhatsApp(ctx, testPhone, "", nil); return err }, "template", "POST /notifications/whatsapp"},
		{"dot_appointment", func() error { _, err := e.api.Appointments.Get(ctx, ".."); return err }, "id", "GET /appointments/:id"},
		{"dot_cancel", func() error { _, err := e.api.Appointments.Cancel(ctx, "..", "moved"); return err }, "appointmentId", "POST /appointments/:id/cancel"},
		{"dot_slots", func() error { _, err := e.api.Clinicians.Slots(ctx, ".", testDate); return err }, "clinicianId", "GET /clinicians/:id/slots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, careapi.ErrInvalidInput)
			var ie *careapi.InputError
			require.ErrorAs(t, err, &ie)
			assert.Contains(t, ie.Fields, tt.field)
			assert.Zero(t, e.sb.Faults().Hits(tt.route))
			assert.False(t, retry.IsRetryable(err))
		})
	}
}

func TestPathIDsReachServerEscaped(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.EscapedPath())
		mu.Unlock()
		_, _ = w.Write([]byte(`{"data":{"id":"x"}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := httpclient.NewBuilder(nil).WithBaseURL(srv.URL).Build()
	require.NoError(t, err)
	api := careapi.New(client, retry.New(retry.DefaultPolicy(), retry.WithSleeper(noWait)), session.NewMemoryStore(), nil)
	ctx := context.Background()

	_, err = api.Clinicians.Get(ctx, "a/b")
	require.NoError(t, err)
	_, err = api.Centres.Get(ctx, "bandra west")
	require.NoError(t, err)
	_, err = api.Appointments.Get(ctx, "a?b")
	require.NoError(t, err)

	for _, id := range []string{".", ".."} {
		_, err = api.Appointments.Get(ctx, id)
		assert.ErrorIs(t, err, careapi.ErrInvalidInput)
		_, err = api.Appointments.Cancel(ctx, id, "moved")
		assert.ErrorIs(t, err, careapi.ErrInvalidInput)
		_, err = api.Clinicians.Get(ctx, id)
		assert.ErrorIs(t, err, careapi.ErrInvalidInput)
		_, err = api.Centres.Get(ctx, id)
		assert.ErrorIs(t, err, careapi.ErrInvalidInput)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/clinicians/a%2Fb", "/centres/bandra%20west", "/appointments/a%3Fb"}, paths)
}

// Two server errors then success: the read resolves after three calls.
func TestReadRecoversFromTransientServerErrors(t *testing.T) {
	e := newEnv(t, retry.Policy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffMultiplier: 2})
	e.sb.Faults().Script("GET /centres", http.StatusInternalServerError, http.StatusInternalServerError)

	centres, err := e.api.Centres.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, centres, 2)
	assert.Equal(t, 3, e.sb.Faults().Hits("GET /centres"))
}

// A 404 fails after exactly one call.
func TestReadNotFoundFailsOnce(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())

	_, err := e.api.Clinicians.Get(context.Background(), "cl-404")
	require.Error(t, err)
	ce, ok := httpclient.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, httpclient.ClientRequestError, ce.Kind())
	assert.False(t, ce.Retryable())
	assert.Equal(t, http.StatusNotFound, ce.StatusCode())
	assert.Equal(t, "clinician not found", ce.Message())
	assert.Equal(t, 1, e.sb.Faults().Hits("GET /clinicians/:id"))
}

func TestRetriesExhausted(t *testing.T) {
	e := newEnv(t, retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffMultiplier: 2})
	e.sb.Faults().Script("GET /clinicians", 503, 503, 503, 503)

	_, err := e.api.Clinicians.List(context.Background(), careapi.ClinicianFilter{})
	require.Error(t, err)
	assert.True(t, httpclient.IsKind(err, httpclient.ServerError))
	assert.Equal(t, 3, e.sb.Faults().Hits("GET /clinicians"))
}

func TestMutationRetriesReuseIdempotencyKey(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())
	e.signIn(t)
	e.sb.Faults().Script("POST /appointments", http.StatusBadGateway)

	appt, err := e.api.Appointments.Book(context.Background(), careapi.BookingRequest{
		ClinicianID: "cl-003", SlotID: "cl-003_20300304_12", Mode: careapi.ModeVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, careapi.StatusPendingPayment, appt.Status)

	reqs := e.sb.Faults().Requests("POST /appointments")
	require.Len(t, reqs, 2)
	assert.NotEmpty(t, reqs[0].IdempotencyKey)
	assert.Equal(t, reqs[0].IdempotencyKey, reqs[1].IdempotencyKey)
	assert.Equal(t, "Bearer "+mustToken(t, e), reqs[1].Authorization)
}

func TestRevokedTokenExpiresSession(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())
	sess := e.signIn(t)
	e.sb.Faults().Revoke(sess.Token)

	_, err := e.api.Appointments.ListMine(context.Background())
	require.Error(t, err)
	assert.True(t, httpclient.IsKind(err, httpclient.AuthExpired))
	assert.Equal(t, 1, e.sb.Faults().Hits("GET /appointments"), "401 is not retried")
	assert.EqualValues(t, 1, e.expired.Load())

	_, err = e.store.Load(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestBookAndPay(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())
	e.signIn(t)
	ctx := context.Background()

	bc, err := e.api.BookingContext(ctx, "cl-001", "ctr-blr", testDate)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Asha Rao", bc.Clinician.Name)
	assert.Equal(t, "ctr-blr", bc.Centre.ID)
	require.NotEmpty(t, bc.Slots)
	for _, s := range bc.Slots {
		assert.Contains(t, []string{"", "ctr-blr"}, s.CentreID)
	}

	slot := bc.Slots[0]
	appt, err := e.api.Appointments.Book(ctx, careapi.BookingRequest{
		ClinicianID: "cl-001", CentreID: slot.CentreID, SlotID: slot.ID, Mode: slot.Mode,
	})
	require.NoError(t, err)

	order, err := e.api.Payments.CreateOrder(ctx, appt.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 150000, order.AmountPaise)
	assert.Equal(t, "INR", order.Currency)

	res, err := e.api.Payments.Verify(ctx, order.ID, "pay_42", e.sb.SignPayment(order.ID, "pay_42"))
	require.NoError(t, err)
	assert.Equal(t, careapi.PaymentPaid, res.Status)

	got, err := e.api.Appointments.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, careapi.StatusConfirmed, got.Status)

	mine, err := e.api.Appointments.ListMine(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	cancelled, err := e.api.Appointments.Cancel(ctx, appt.ID, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, careapi.StatusCancelled, cancelled.Status)

	receipt, err := e.api.Notifications.SendWhatsApp(ctx, testPhone, "appointment_cancelled", map[string]string{"id": appt.ID})
	require.NoError(t, err)
	assert.Equal(t, "queued", receipt.Status)
}

func TestBookingContextPropagatesFirstError(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())

	_, err := e.api.BookingContext(context.Background(), "cl-404", "", testDate)
	require.Error(t, err)
	assert.True(t, httpclient.IsKind(err, httpclient.ClientRequestError))

	bc, err := e.api.BookingContext(context.Background(), "cl-003", "", testDate)
	require.NoError(t, err)
	assert.Nil(t, bc.Centre)
	assert.Len(t, bc.Slots, 7)
}

func TestClinicianFilter(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())
	list, err := e.api.Clinicians.List(context.Background(), careapi.ClinicianFilter{Specialty: "psychology"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "cl-002", list[0].ID)
}

func TestLogoutClearsSessionEvenOnFailure(t *testing.T) {
	e := newEnv(t, retry.Policy{MaxRetries: 0, InitialDelay: 0, BackoffMultiplier: 1})
	e.signIn(t)
	e.sb.Faults().Script("POST /auth/logout", http.StatusInternalServerError)

	err := e.api.Auth.Logout(context.Background())
	require.Error(t, err)
	assert.True(t, httpclient.IsKind(err, httpclient.ServerError))

	_, err = e.store.Load(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestLogout(t *testing.T) {
	e := newEnv(t, retry.DefaultPolicy())
	sess := e.signIn(t)

	require.NoError(t, e.api.Auth.Logout(context.Background()))
	_, err := e.api.Auth.CurrentUser(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)

	require.NoError(t, e.store.Save(context.Background(), sess))
	_, err = e.api.Appointments.ListMine(context.Background())
	assert.True(t, httpclient.IsKind(err, httpclient.AuthExpired), "token was revoked on the backend")
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	var states []retry.State
	e := newEnv(t, retry.Policy{MaxRetries: 5, InitialDelay: time.Hour, BackoffMultiplier: 2},
		retry.WithStatus(func(s retry.Status) { states = append(states, s.State) }))
	e.sb.Faults().Script("GET /centres", http.StatusServiceUnavailable)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := e.api.Centres.List(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, httpclient.IsKind(err, httpclient.ServerError), "the last attempt's error is kept")
	assert.Equal(t, 1, e.sb.Faults().Hits("GET /centres"))
	assert.Equal(t, retry.Failed, states[len(states)-1])
}

func mustToken(t *testing.T, e *env) string {
	t.Helper()
	tok, err := e.store.Token(context.Background())
	require.NoError(t, err)
	return tok
}
