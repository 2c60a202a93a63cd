package careapi

import (
	"context"
	"net/url"
)

// ClinicianService reads the clinician directory and availability.
type ClinicianService struct {
	c *caller
}

func (s *ClinicianService) List(ctx context.Context, filter ClinicianFilter) ([]Clinician, error) {
	if err := check(filter); err != nil {
		return nil, err
	}
	q := url.Values{}
	if filter.CentreID != "" {
		q.Set("centre", filter.CentreID)
	}
	if filter.Specialty != "" {
		q.Set("specialty", filter.Specialty)
	}
	if filter.Mode != "" {
		q.Set("mode", filter.Mode)
	}
	return get[[]Clinician](ctx, s.c, "/clinicians", q)
}

func (s *ClinicianService) Get(ctx context.Context, id string) (*Clinician, error) {
	if err := checkID("id", id); err != nil {
		return nil, err
	}
	out, err := get[Clinician](ctx, s.c, pathFor("clinicians", id), nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Slots lists the clinician's slots on date (YYYY-MM-DD).
func (s *ClinicianService) Slots(ctx context.Context, clinicianID, date string) ([]Slot, error) {
	in := SlotQuery{ClinicianID: clinicianID, Date: date}
	if err := check(in); err != nil {
		return nil, err
	}
	return get[[]Slot](ctx, s.c, pathFor("clinicians", clinicianID, "slots"), url.Values{"date": {date}})
}
