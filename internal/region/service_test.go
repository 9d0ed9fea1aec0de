package region

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type stubBackend struct {
	regions []commerce.Region
	calls   int
}

func (s *stubBackend) ListRegions(context.Context) ([]commerce.Region, error) {
	s.calls++
	return s.regions, nil
}

func (s *stubBackend) RetrieveRegion(_ context.Context, id string) (*commerce.Region, error) {
	for _, r := range s.regions {
		if r.ID == id {
			region := r
			return &region, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "region not found")
}

func TestListNeverReturnsNil(t *testing.T) {
	svc, err := NewService(&stubBackend{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	regions, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if regions == nil {
		t.Fatalf("expected empty slice")
	}
}

func TestGetValidatesAndResolves(t *testing.T) {
	svc, _ := NewService(&stubBackend{regions: []commerce.Region{{ID: "reg_eu", Name: "Europe"}}})

	if _, err := svc.Get(context.Background(), " "); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "reg_us"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	region, err := svc.Get(context.Background(), "reg_eu")
	if err != nil || region.Name != "Europe" {
		t.Fatalf("unexpected region %+v err=%v", region, err)
	}
}
