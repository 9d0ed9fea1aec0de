package region

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type backend interface {
	ListRegions(ctx context.Context) ([]commerce.Region, error)
	RetrieveRegion(ctx context.Context, regionID string) (*commerce.Region, error)
}

// Service resolves the selling regions a session can pick from.
type Service interface {
	List(ctx context.Context) ([]commerce.Region, error)
	Get(ctx context.Context, regionID string) (*commerce.Region, error)
}

type service struct {
	backend backend
}

func NewService(b backend) (Service, error) {
	if b == nil {
		return nil, errors.New("commerce backend required")
	}
	return &service{backend: b}, nil
}

func (s *service) List(ctx context.Context) ([]commerce.Region, error) {
	regions, err := s.backend.ListRegions(ctx)
	if err != nil {
		return nil, err
	}
	if regions == nil {
		regions = []commerce.Region{}
	}
	return regions, nil
}

// Get returns the region or a not-found error when the backend does not know it.
func (s *service) Get(ctx context.Context, regionID string) (*commerce.Region, error) {
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "region id is required")
	}
	return s.backend.RetrieveRegion(ctx, regionID)
}
