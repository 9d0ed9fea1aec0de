package address

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// CountryRule pins addresses matching City or Province to Country.
type CountryRule struct {
	Name     string
	City     string
	Province string
	Country  string
}

func (r CountryRule) matches(p commerce.AddressPayload) bool {
	if r.City != "" && strings.EqualFold(p.City, r.City) {
		return true
	}
	return r.Province != "" && strings.EqualFold(p.Province, r.Province)
}

// Policy is the single place deciding whether an address may be sent to a cart.
// Addresses that break a country rule are rejected, never rewritten.
type Policy struct {
	Rules []CountryRule
}

// DefaultPolicy carries the known city/province to country pins.
func DefaultPolicy() Policy {
	return Policy{Rules: []CountryRule{
		{Name: "belo-horizonte", City: "Belo Horizonte", Country: "br"},
		{Name: "minas-gerais", Province: "MG", Country: "br"},
	}}
}

// Check validates p. When allowedCountries is non-empty the country code must be one of them.
// Violations are collected and returned as one validation error.
func (pol Policy) Check(p commerce.AddressPayload, allowedCountries []string) error {
	var errs error
	if p.FirstName == "" {
		errs = multierr.Append(errs, fmt.Errorf("first_name is required"))
	}
	if p.LastName == "" {
		errs = multierr.Append(errs, fmt.Errorf("last_name is required"))
	}
	if p.Address1 == "" {
		errs = multierr.Append(errs, fmt.Errorf("address_1 is required"))
	}
	if p.CountryCode == "" {
		errs = multierr.Append(errs, fmt.Errorf("country_code is required"))
	}

	country := strings.ToLower(p.CountryCode)
	for _, rule := range pol.Rules {
		if country == "" || !rule.matches(p) {
			continue
		}
		if !strings.EqualFold(country, rule.Country) {
			errs = multierr.Append(errs, fmt.Errorf("country_code %q does not match %s (expected %q)", country, rule.Name, rule.Country))
		}
	}

	if country != "" && len(allowedCountries) > 0 && !containsFold(allowedCountries, country) {
		errs = multierr.Append(errs, fmt.Errorf("country_code %q is not served by the cart region", country))
	}

	if errs == nil {
		return nil
	}
	details := make([]string, 0)
	for _, e := range multierr.Errors(errs) {
		details = append(details, e.Error())
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, errs, "address is invalid").WithDetails(map[string]any{"violations": details})
}

// Accepts is Check without the error detail.
func (pol Policy) Accepts(p commerce.AddressPayload, allowedCountries []string) bool {
	return pol.Check(p, allowedCountries) == nil
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
