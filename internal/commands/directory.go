package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindhaven/carekit/app"
	"github.com/mindhaven/carekit/careapi"
)

func newCentresCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "centres [id]",
		Short: "List centres, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if len(args) == 1 {
					return a.API().Centres.Get(ctx, args[0])
				}
				return a.API().Centres.List(ctx)
			})
		},
	}
}

func newCliniciansCmd(rt *runtime) *cobra.Command {
	var filter careapi.ClinicianFilter
	cmd := &cobra.Command{
		Use:   "clinicians [id]",
		Short: "List clinicians, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if len(args) == 1 {
					return a.API().Clinicians.Get(ctx, args[0])
				}
				return a.API().Clinicians.List(ctx, filter)
			})
		},
	}
	cmd.Flags().StringVar(&filter.CentreID, "centre", "", "Only clinicians at this centre")
	cmd.Flags().StringVar(&filter.Specialty, "specialty", "", "Only clinicians with this specialty")
	cmd.Flags().StringVar(&filter.Mode, "mode", "", "Only clinicians offering this mode (in_person, video)")
	return cmd
}

func newSlotsCmd(rt *runtime) *cobra.Command {
	var date, centre string
	cmd := &cobra.Command{
		Use:   "slots <clinician>",
		Short: "Show a clinician's slots for one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().Format(careapi.DateLayout)
			}
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if centre != "" {
					return a.API().BookingContext(ctx, args[0], centre, date)
				}
				return a.API().Clinicians.Slots(ctx, args[0], date)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&centre, "centre", "", "Also load the centre and keep only its slots")
	return cmd
}
