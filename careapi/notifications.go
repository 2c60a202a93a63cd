package careapi

import (
	"context"
	"net/http"
)

// NotificationService queues outbound messages.
type NotificationService struct {
	c *caller
}

// SendWhatsApp queues template with params for phone.
func (s *NotificationService) SendWhatsApp(ctx context.Context, phone, template string, params map[string]string) (*NotificationReceipt, error) {
	in := WhatsAppMessage{Phone: phone, Template: template, Params: params}
	if err := check(in); err != nil {
		return nil, err
	}
	out, err := send[NotificationReceipt](ctx, s.c, http.MethodPost, "/notifications/whatsapp", in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
