package careapi

import (
	"context"
	"net/http"
)

// PaymentService creates Razorpay orders and confirms completed payments.
type PaymentService struct {
	c *caller
}

// CreateOrder opens an order covering the appointment's fee.
func (s *PaymentService) CreateOrder(ctx context.Context, appointmentID string) (*PaymentOrder, error) {
	in := OrderRequest{AppointmentID: appointmentID}
	if err := check(in); err != nil {
		return nil, err
	}
	out, err := send[PaymentOrder](ctx, s.c, http.MethodPost, "/payments/orders", in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify submits the checkout signature. On success the appointment is confirmed.
func (s *PaymentService) Verify(ctx context.Context, orderID, paymentID, signature string) (*PaymentResult, error) {
	in := PaymentVerification{OrderID: orderID, PaymentID: paymentID, Signature: signature}
	if err := check(in); err != nil {
		return nil, err
	}
	out, err := send[PaymentResult](ctx, s.c, http.MethodPost, "/payments/verify", in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
