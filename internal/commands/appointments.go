package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mindhaven/carekit/app"
	"github.com/mindhaven/carekit/careapi"
)

func newBookCmd(rt *runtime) *cobra.Command {
	var req careapi.BookingRequest
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a slot",
		Long: "Book a slot with a clinician. The appointment stays pending_payment until " +
			"`carectl pay` verifies the payment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.API().Appointments.Book(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.ClinicianID, "clinician", "", "Clinician ID")
	cmd.Flags().StringVar(&req.CentreID, "centre", "", "Centre ID, required for in_person")
	cmd.Flags().StringVar(&req.SlotID, "slot", "", "Slot ID from `carectl slots`")
	cmd.Flags().StringVar(&req.Mode, "mode", careapi.ModeVideo, "in_person or video")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Note for the clinician")
	_ = cmd.MarkFlagRequired("clinician")
	_ = cmd.MarkFlagRequired("slot")
	return cmd
}

func newAppointmentsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "appointments [id]",
		Short: "List your appointments, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if len(args) == 1 {
					return a.API().Appointments.Get(ctx, args[0])
				}
				return a.API().Appointments.ListMine(ctx)
			})
		},
	}
}

func newCancelCmd(rt *runtime) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <appointment>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.API().Appointments.Cancel(ctx, args[0], reason)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the appointment is cancelled")
	return cmd
}

func newPayCmd(rt *runtime) *cobra.Command {
	var appointmentID, orderID, paymentID, signature string
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Create a payment order, or verify a completed checkout",
		Long: "Without --payment-id, creates the order the checkout widget needs. With " +
			"--order, --payment-id and --signature, verifies the checkout result and confirms the appointment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if paymentID == "" && signature == "" {
					if appointmentID == "" {
						return nil, errors.New("--appointment is required to create an order")
					}
					return a.API().Payments.CreateOrder(ctx, appointmentID)
				}
				return a.API().Payments.Verify(ctx, orderID, paymentID, signature)
			})
		},
	}
	cmd.Flags().StringVar(&appointmentID, "appointment", "", "Appointment to pay for")
	cmd.Flags().StringVar(&orderID, "order", "", "Order ID returned when the order was created")
	cmd.Flags().StringVar(&paymentID, "payment-id", "", "Payment ID from checkout")
	cmd.Flags().StringVar(&signature, "signature", "", "Checkout signature")
	cmd.MarkFlagsRequiredTogether("order", "payment-id", "signature")
	return cmd
}
