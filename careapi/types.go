package careapi

import (
	"time"

	"github.com/mindhaven/carekit/session"
)

// Consultation modes.
const (
	ModeInPerson = "in_person"
	ModeVideo    = "video"
)

// Appointment states.
const (
	StatusPendingPayment = "pending_payment"
	StatusConfirmed      = "confirmed"
	StatusCancelled      = "cancelled"
)

// Payment order states.
const (
	PaymentCreated = "created"
	PaymentPaid    = "paid"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type OTPRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type OTPChallenge struct {
	Phone string `json:"phone"`
	// ExpiresIn is the OTP lifetime in seconds.
	ExpiresIn int `json:"expiresIn"`
}

type OTPVerification struct {
	Phone string `json:"phone" validate:"required,e164"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// AuthResult is what a successful OTP verification returns.
type AuthResult struct {
	Token string          `json:"token"`
	User  session.Profile `json:"user"`
}

type Clinician struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Specialty      string   `json:"specialty"`
	Qualifications []string `json:"qualifications,omitempty"`
	Languages      []string `json:"languages,omitempty"`
	CentreIDs      []string `json:"centreIds"`
	Modes          []string `json:"modes"`
	FeePaise       int64    `json:"feePaise"`
}

// ClinicianFilter narrows List. Empty fields match everything.
type ClinicianFilter struct {
	CentreID  string `json:"centre,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=in_person video"`
}

type Centre struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
}

type Slot struct {
	ID          string    `json:"id"`
	ClinicianID string    `json:"clinicianId"`
	CentreID    string    `json:"centreId,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Mode        string    `json:"mode"`
	Available   bool      `json:"available"`
}

type SlotQuery struct {
	ClinicianID string `json:"clinicianId" validate:"required,segment"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
}

type BookingRequest struct {
	ClinicianID string `json:"clinicianId" validate:"required"`
	CentreID    string `json:"centreId,omitempty" validate:"required_if=Mode in_person"`
	SlotID      string `json:"slotId" validate:"required"`
	Mode        string `json:"mode" validate:"required,oneof=in_person video"`
	Notes       string `json:"notes,omitempty" validate:"max=500"`
}

type Appointment struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ClinicianID  string    `json:"clinicianId"`
	CentreID     string    `json:"centreId,omitempty"`
	SlotID       string    `json:"slotId"`
	Mode         string    `json:"mode"`
	Status       string    `json:"status"`
	Start        time.Time `json:"start"`
	Notes        string    `json:"notes,omitempty"`
	CancelReason string    `json:"cancelReason,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CancelRequest struct {
	AppointmentID string `json:"-" validate:"required,segment"`
	Reason        string `json:"reason" validate:"max=500"`
}

type OrderRequest struct {
	AppointmentID string `json:"appointmentId" validate:"required"`
}

// PaymentOrder describes a Razorpay order for the checkout widget.
type PaymentOrder struct {
	ID            string `json:"id"`
	AppointmentID string `json:"appointmentId"`
	AmountPaise   int64  `json:"amountPaise"`
	Currency      string `json:"currency"`
	KeyID         string `json:"keyId"`
	Status        string `json:"status"`
}

// PaymentVerification carries the values Razorpay checkout hands back.
type PaymentVerification struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

type PaymentResult struct {
	OrderID       string `json:"orderId"`
	PaymentID     string `json:"paymentId"`
	AppointmentID string `json:"appointmentId"`
	Status        string `json:"status"`
}

type WhatsAppMessage struct {
	Phone    string            `json:"phone" validate:"required,e164"`
	Template string            `json:"template" validate:"required"`
	Params   map[string]string `json:"params,omitempty"`
}

type NotificationReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// BookingContext is everything the booking screen needs for one day.
type BookingContext struct {
	Clinician *Clinician `json:"clinician"`
	Centre    *Centre    `json:"centre,omitempty"`
	Slots     []Slot     `json:"slots"`
}
