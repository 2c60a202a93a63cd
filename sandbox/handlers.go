package sandbox

import (
	"crypto/hmac"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mindhaven/carekit/careapi"
)

const otpLifetimeSeconds = 300

func (s *Server) sendOTP(c echo.Context) error {
	var in careapi.OTPRequest
	if err := bind(c, &in); err != nil {
		return err
	}

	s.state.mu.Lock()
	s.state.pendingOTP[in.Phone] = true
	s.state.mu.Unlock()

	s.log.Info().Str("phone", in.Phone).Msg("OTP issued")
	return s.respond(c, http.StatusOK, careapi.OTPChallenge{Phone: in.Phone, ExpiresIn: otpLifetimeSeconds})
}

func (s *Server) verifyOTP(c echo.Context) error {
	var in careapi.OTPVerification
	if err := bind(c, &in); err != nil {
		return err
	}

	s.state.mu.Lock()
	if !s.state.pendingOTP[in.Phone] {
		s.state.mu.Unlock()
		return newAPIError(http.StatusBadRequest, "no OTP was requested for this number").
			withField("phone", "request an OTP first")
	}
	if in.OTP != s.cfg.OTP {
		s.state.mu.Unlock()
		return newAPIError(http.StatusBadRequest, "incorrect OTP").withField("otp", "is incorrect")
	}
	delete(s.state.pendingOTP, in.Phone)
	token, user := s.state.signIn(in.Phone)
	s.state.mu.Unlock()

	return s.respond(c, http.StatusOK, careapi.AuthResult{Token: token, User: *user})
}

func (s *Server) logout(c echo.Context) error {
	token, _ := c.Get(ctxToken).(string)
	s.state.mu.Lock()
	delete(s.state.tokens, token)
	s.state.mu.Unlock()
	return s.respond(c, http.StatusOK, struct{}{})
}

func (s *Server) listClinicians(c echo.Context) error {
	centre := c.QueryParam("centre")
	specialty := c.QueryParam("specialty")
	mode := c.QueryParam("mode")

	out := make([]careapi.Clinician, 0, len(s.state.clinicians))
	for _, cl := range s.state.clinicians {
		if centre != "" && !slices.Contains(cl.CentreIDs, centre) {
			continue
		}
		if specialty != "" && !strings.EqualFold(cl.Specialty, specialty) {
			continue
		}
		if mode != "" && !slices.Contains(cl.Modes, mode) {
			continue
		}
		out = append(out, cl)
	}
	return s.respond(c, http.StatusOK, out)
}

func (s *Server) getClinician(c echo.Context) error {
	cl, ok := s.state.clinician(c.Param("id"))
	if !ok {
		return errNotFound("clinician")
	}
	return s.respond(c, http.StatusOK, cl)
}

func (s *Server) listSlots(c echo.Context) error {
	cl, ok := s.state.clinician(c.Param("id"))
	if !ok {
		return errNotFound("clinician")
	}
	day, err := time.ParseInLocation(careapi.DateLayout, c.QueryParam("date"), ist)
	if err != nil {
		return newAPIError(http.StatusUnprocessableEntity, "validation failed").
			withField("date", "must be a date in YYYY-MM-DD form")
	}

	s.state.mu.Lock()
	slots := s.state.slots(cl, day)
	s.state.mu.Unlock()
	return s.respond(c, http.StatusOK, slots)
}

func (s *Server) listCentres(c echo.Context) error {
	return s.respond(c, http.StatusOK, s.state.centres)
}

func (s *Server) getCentre(c echo.Context) error {
	ctr, ok := s.state.centre(c.Param("id"))
	if !ok {
		return errNotFound("centre")
	}
	return s.respond(c, http.StatusOK, ctr)
}

func (s *Server) bookAppointment(c echo.Context) error {
	var in careapi.BookingRequest
	if err := bind(c, &in); err != nil {
		return err
	}

	cl, ok := s.state.clinician(in.ClinicianID)
	if !ok {
		return errNotFound("clinician")
	}
	slotClinician, day, hour, ok := parseSlotID(in.SlotID)
	if !ok || slotClinician != cl.ID {
		return newAPIError(http.StatusUnprocessableEntity, "validation failed").
			withField("slotId", "does not belong to this clinician")
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	slot := s.state.slotFor(cl, day, hour)
	switch {
	case !slot.Available:
		return newAPIError(http.StatusConflict, "slot is no longer available")
	case slot.Mode != in.Mode:
		return newAPIError(http.StatusUnprocessableEntity, "validation failed").
			withField("mode", "slot is "+slot.Mode)
	case slot.Mode == careapi.ModeInPerson && in.CentreID != slot.CentreID:
		return newAPIError(http.StatusUnprocessableEntity, "validation failed").
			withField("centreId", "slot is at "+slot.CentreID)
	}

	appt := &careapi.Appointment{
		ID:          "apt-" + uuid.NewString()[:8],
		UserID:      userID(c),
		ClinicianID: cl.ID,
		CentreID:    slot.CentreID,
		SlotID:      slot.ID,
		Mode:        slot.Mode,
		Status:      careapi.StatusPendingPayment,
		Start:       slot.Start,
		Notes:       in.Notes,
		CreatedAt:   s.now().UTC(),
	}
	s.state.appointments[appt.ID] = appt
	return s.respondLocked(c, http.StatusCreated, *appt)
}

func (s *Server) listAppointments(c echo.Context) error {
	uid := userID(c)
	s.state.mu.Lock()
	out := make([]careapi.Appointment, 0)
	for _, a := range s.state.appointments {
		if a.UserID == uid {
			out = append(out, *a)
		}
	}
	s.state.mu.Unlock()

	slices.SortFunc(out, func(a, b careapi.Appointment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return s.respond(c, http.StatusOK, out)
}

func (s *Server) getAppointment(c echo.Context) error {
	s.state.mu.Lock()
	appt, ok := s.ownAppointment(c, c.Param("id"))
	var out careapi.Appointment
	if ok {
		out = *appt
	}
	s.state.mu.Unlock()
	if !ok {
		return errNotFound("appointment")
	}
	return s.respond(c, http.StatusOK, out)
}

func (s *Server) cancelAppointment(c echo.Context) error {
	var in careapi.CancelRequest
	if err := c.Bind(&in); err != nil {
		return newAPIError(http.StatusBadRequest, "malformed request body")
	}
	in.AppointmentID = c.Param("id")
	if err := c.Validate(&in); err != nil {
		return err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	appt, ok := s.ownAppointment(c, in.AppointmentID)
	if !ok {
		return errNotFound("appointment")
	}
	if appt.Status == careapi.StatusCancelled {
		return newAPIError(http.StatusConflict, "appointment is already cancelled")
	}
	appt.Status = careapi.StatusCancelled
	appt.CancelReason = in.Reason
	return s.respondLocked(c, http.StatusOK, *appt)
}

func (s *Server) createOrder(c echo.Context) error {
	var in careapi.OrderRequest
	if err := bind(c, &in); err != nil {
		return err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	appt, ok := s.ownAppointment(c, in.AppointmentID)
	if !ok {
		return errNotFound("appointment")
	}
	if appt.Status != careapi.StatusPendingPayment {
		return newAPIError(http.StatusConflict, "appointment is not awaiting payment")
	}
	cl, _ := s.state.clinician(appt.ClinicianID)

	o := &order{
		PaymentOrder: careapi.PaymentOrder{
			ID:            "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
			AppointmentID: appt.ID,
			AmountPaise:   cl.FeePaise,
			Currency:      "INR",
			KeyID:         s.cfg.KeyID,
			Status:        careapi.PaymentCreated,
		},
		userID: appt.UserID,
	}
	s.state.orders[o.ID] = o
	return s.respondLocked(c, http.StatusCreated, o.PaymentOrder)
}

func (s *Server) verifyPayment(c echo.Context) error {
	var in careapi.PaymentVerification
	if err := bind(c, &in); err != nil {
		return err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	o, ok := s.state.orders[in.OrderID]
	if !ok || o.userID != userID(c) {
		return errNotFound("order")
	}
	expected := s.SignPayment(in.OrderID, in.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(in.Signature))) {
		return newAPIError(http.StatusBadRequest, "payment verification failed").
			withField("signature", "does not match")
	}

	o.Status = careapi.PaymentPaid
	o.paymentID = in.PaymentID
	if appt, ok := s.state.appointments[o.AppointmentID]; ok && appt.Status == careapi.StatusPendingPayment {
		appt.Status = careapi.StatusConfirmed
	}
	return s.respondLocked(c, http.StatusOK, careapi.PaymentResult{
		OrderID:       o.ID,
		PaymentID:     in.PaymentID,
		AppointmentID: o.AppointmentID,
		Status:        o.Status,
	})
}

func (s *Server) sendWhatsApp(c echo.Context) error {
	var in careapi.WhatsAppMessage
	if err := bind(c, &in); err != nil {
		return err
	}
	s.log.Info().
		Str("phone", in.Phone).
		Str("template", in.Template).
		Interface("params", in.Params).
		Msg("WhatsApp message queued")
	return s.respond(c, http.StatusAccepted, careapi.NotificationReceipt{
		ID:     "wa-" + uuid.NewString()[:8],
		Status: "queued",
	})
}

// ownAppointment looks up id for the calling user. The state lock must be held.
func (s *Server) ownAppointment(c echo.Context, id string) (*careapi.Appointment, bool) {
	appt, ok := s.state.appointments[id]
	if !ok || appt.UserID != userID(c) {
		return nil, false
	}
	return appt, true
}
