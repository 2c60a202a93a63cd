package careapi

import (
	"context"
	"net/http"
)

// AppointmentService books and manages the signed-in user's appointments.
type AppointmentService struct {
	c *caller
}

// Book reserves a slot. The appointment starts in StatusPendingPayment.
func (s *AppointmentService) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	out, err := send[Appointment](ctx, s.c, http.MethodPost, "/appointments", req)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AppointmentService) Get(ctx context.Context, id string) (*Appointment, error) {
	if err := checkID("id", id); err != nil {
		return nil, err
	}
	out, err := get[Appointment](ctx, s.c, pathFor("appointments", id), nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMine returns the signed-in user's appointments, newest first.
func (s *AppointmentService) ListMine(ctx context.Context) ([]Appointment, error) {
	return get[[]Appointment](ctx, s.c, "/appointments", nil)
}

func (s *AppointmentService) Cancel(ctx context.Context, id, reason string) (*Appointment, error) {
	in := CancelRequest{AppointmentID: id, Reason: reason}
	if err := check(in); err != nil {
		return nil, err
	}
	out, err := send[Appointment](ctx, s.c, http.MethodPost, pathFor("appointments", id, "cancel"), in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
