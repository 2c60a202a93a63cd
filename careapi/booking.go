package careapi

import (
	"context"

	"golang.org/x/sync/errgroup"
)

func loadBookingContext(ctx context.Context, a *API, clinicianID, centreID, date string) (*BookingContext, error) {
	if err := check(SlotQuery{ClinicianID: clinicianID, Date: date}); err != nil {
		return nil, err
	}

	out := &BookingContext{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c, err := a.Clinicians.Get(gctx, clinicianID)
		out.Clinician = c
		return err
	})
	if centreID != "" {
		g.Go(func() error {
			c, err := a.Centres.Get(gctx, centreID)
			out.Centre = c
			return err
		})
	}
	g.Go(func() error {
		slots, err := a.Clinicians.Slots(gctx, clinicianID, date)
		if err != nil {
			return err
		}
		if centreID == "" {
			out.Slots = slots
			return nil
		}
		for _, s := range slots {
			if s.CentreID == "" || s.CentreID == centreID {
				out.Slots = append(out.Slots, s)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
