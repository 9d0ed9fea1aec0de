package address

import (
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
)

// Sanitize reduces a stored address to the payload accepted by cart updates,
// dropping the id and default flags and trimming every field.
func Sanitize(addr commerce.Address) commerce.AddressPayload {
	return commerce.AddressPayload{
		FirstName:   strings.TrimSpace(addr.FirstName),
		LastName:    strings.TrimSpace(addr.LastName),
		Company:     strings.TrimSpace(addr.Company),
		Address1:    strings.TrimSpace(addr.Address1),
		Address2:    strings.TrimSpace(addr.Address2),
		City:        strings.TrimSpace(addr.City),
		Province:    strings.TrimSpace(addr.Province),
		PostalCode:  strings.TrimSpace(addr.PostalCode),
		CountryCode: strings.ToLower(strings.TrimSpace(addr.CountryCode)),
		Phone:       strings.TrimSpace(addr.Phone),
	}
}

// FindByID returns the address with id from book.
func FindByID(book []commerce.Address, id string) (commerce.Address, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return commerce.Address{}, false
	}
	for _, addr := range book {
		if addr.ID == id {
			return addr, true
		}
	}
	return commerce.Address{}, false
}

// DefaultShipping returns the address flagged as default shipping.
func DefaultShipping(book []commerce.Address) (commerce.Address, bool) {
	for _, addr := range book {
		if addr.IsDefaultShipping {
			return addr, true
		}
	}
	return commerce.Address{}, false
}

// DefaultBilling returns the address flagged as default billing.
func DefaultBilling(book []commerce.Address) (commerce.Address, bool) {
	for _, addr := range book {
		if addr.IsDefaultBilling {
			return addr, true
		}
	}
	return commerce.Address{}, false
}

// ShippingChoices lists the addresses offered for shipping; the default
// billing address is not one of them.
func ShippingChoices(book []commerce.Address) []commerce.Address {
	out := make([]commerce.Address, 0, len(book))
	for _, addr := range book {
		if addr.IsDefaultBilling {
			continue
		}
		out = append(out, addr)
	}
	return out
}
