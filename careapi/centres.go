package careapi

import "context"

// CentreService reads the centre directory.
type CentreService struct {
	c *caller
}

func (s *CentreService) List(ctx context.Context) ([]Centre, error) {
	return get[[]Centre](ctx, s.c, "/centres", nil)
}

func (s *CentreService) Get(ctx context.Context, id string) (*Centre, error) {
	if err := checkID("id", id); err != nil {
		return nil, err
	}
	out, err := get[Centre](ctx, s.c, pathFor("centres", id), nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
