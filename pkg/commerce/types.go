package commerce

// Region is a selling region of the commerce backend.
type Region struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CurrencyCode string    `json:"currency_code"`
	Countries    []Country `json:"countries,omitempty"`
}

type Country struct {
	ISO2        string `json:"iso_2"`
	DisplayName string `json:"display_name,omitempty"`
}

// CountryCodes returns the lower-case ISO2 codes served by the region.
func (r Region) CountryCodes() []string {
	codes := make([]string, 0, len(r.Countries))
	for _, c := range r.Countries {
		if c.ISO2 != "" {
			codes = append(codes, c.ISO2)
		}
	}
	return codes
}

// Cart amounts are integer minor units of CurrencyCode.
type Cart struct {
	ID                string             `json:"id"`
	RegionID          string             `json:"region_id"`
	Email             string             `json:"email,omitempty"`
	CustomerID        string             `json:"customer_id,omitempty"`
	Items             []LineItem         `json:"items"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	BillingAddress    *Address           `json:"billing_address,omitempty"`
	ShippingMethods   []ShippingMethod   `json:"shipping_methods"`
	PaymentCollection *PaymentCollection `json:"payment_collection,omitempty"`
	Subtotal          int64              `json:"subtotal"`
	ShippingTotal     int64              `json:"shipping_total"`
	TaxTotal          int64              `json:"tax_total"`
	Total             int64              `json:"total"`
	CurrencyCode      string             `json:"currency_code"`
}

// ItemCount sums line item quantities.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

type LineItem struct {
	ID        string `json:"id"`
	VariantID string `json:"variant_id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type ShippingMethod struct {
	ID               string `json:"id"`
	ShippingOptionID string `json:"shipping_option_id"`
	Name             string `json:"name"`
	Amount           int64  `json:"amount"`
}

// Address is a stored address as returned by the backend.
type Address struct {
	ID                string `json:"id,omitempty"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Company           string `json:"company,omitempty"`
	Address1          string `json:"address_1"`
	Address2          string `json:"address_2,omitempty"`
	City              string `json:"city"`
	Province          string `json:"province,omitempty"`
	PostalCode        string `json:"postal_code"`
	CountryCode       string `json:"country_code"`
	Phone             string `json:"phone,omitempty"`
	IsDefaultShipping bool   `json:"is_default_shipping,omitempty"`
	IsDefaultBilling  bool   `json:"is_default_billing,omitempty"`
}

// AddressPayload is the write shape accepted by cart updates.
type AddressPayload struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
}

type Customer struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Addresses      []Address `json:"addresses"`
	BillingAddress *Address  `json:"billing_address,omitempty"`
}

type ShippingOption struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code,omitempty"`
}

type PaymentProvider struct {
	ID        string `json:"id"`
	IsEnabled bool   `json:"is_enabled"`
}

type PaymentCollection struct {
	ID              string           `json:"id"`
	Amount          int64            `json:"amount"`
	CurrencyCode    string           `json:"currency_code"`
	Status          string           `json:"status,omitempty"`
	PaymentSessions []PaymentSession `json:"payment_sessions"`
}

type PaymentSession struct {
	ID           string         `json:"id"`
	ProviderID   string         `json:"provider_id"`
	Amount       int64          `json:"amount"`
	CurrencyCode string         `json:"currency_code"`
	Status       string         `json:"status,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// ClientSecret returns the gateway client secret carried in the session data.
func (s PaymentSession) ClientSecret() string {
	if s.Data == nil {
		return ""
	}
	secret, _ := s.Data["client_secret"].(string)
	return secret
}

type Order struct {
	ID           string     `json:"id"`
	DisplayID    int        `json:"display_id"`
	Email        string     `json:"email"`
	Total        int64      `json:"total"`
	CurrencyCode string     `json:"currency_code"`
	Items        []LineItem `json:"items,omitempty"`
}

const completeTypeOrder = "order"

// CompleteResult is the cart completion response. Type is "order" on success;
// otherwise Cart and Error describe why the cart stayed open.
type CompleteResult struct {
	Type  string `json:"type"`
	Order *Order `json:"order,omitempty"`
	Cart  *Cart  `json:"cart,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// IsOrder reports whether completion produced an order.
func (r *CompleteResult) IsOrder() bool {
	return r != nil && r.Type == completeTypeOrder && r.Order != nil
}

// UpdateCartInput carries the optional cart fields a checkout can set.
type UpdateCartInput struct {
	RegionID        string          `json:"region_id,omitempty"`
	Email           string          `json:"email,omitempty"`
	CustomerID      string          `json:"customer_id,omitempty"`
	ShippingAddress *AddressPayload `json:"shipping_address,omitempty"`
	BillingAddress  *AddressPayload `json:"billing_address,omitempty"`
}
