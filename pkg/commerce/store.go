package commerce

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

func pathID(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}

func requireID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	return nil
}

// ListRegions returns every region configured on the backend.
func (c *Client) ListRegions(ctx context.Context) ([]Region, error) {
	var resp struct {
		Regions []Region `json:"regions"`
	}
	if err := c.do(ctx, "regions.list", http.MethodGet, "/store/regions", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Regions, nil
}

func (c *Client) RetrieveRegion(ctx context.Context, regionID string) (*Region, error) {
	if err := requireID("region id", regionID); err != nil {
		return nil, err
	}
	var resp struct {
		Region Region `json:"region"`
	}
	if err := c.do(ctx, "regions.retrieve", http.MethodGet, "/store/regions/"+pathID(regionID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Region, nil
}

// CreateCart opens a cart bound to regionID.
func (c *Client) CreateCart(ctx context.Context, regionID string) (*Cart, error) {
	if err := requireID("region id", regionID); err != nil {
		return nil, err
	}
	body := map[string]string{"region_id": regionID}
	return c.cartCall(ctx, "carts.create", http.MethodPost, "/store/carts", nil, body)
}

func (c *Client) RetrieveCart(ctx context.Context, cartID string) (*Cart, error) {
	if err := requireID("cart id", cartID); err != nil {
		return nil, err
	}
	return c.cartCall(ctx, "carts.retrieve", http.MethodGet, "/store/carts/"+pathID(cartID), nil, nil)
}

func (c *Client) UpdateCart(ctx context.Context, cartID string, input UpdateCartInput) (*Cart, error) {
	if err := requireID("cart id", cartID); err != nil {
		return nil, err
	}
	return c.cartCall(ctx, "carts.update", http.MethodPost, "/store/carts/"+pathID(cartID), nil, input)
}

func (c *Client) AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*Cart, error) {
	if err := requireID("cart id", cartID); err != nil {
		return nil, err
	}
	if err := requireID("variant id", variantID); err != nil {
		return nil, err
	}
	body := map[string]any{"variant_id": variantID, "quantity": quantity}
	return c.cartCall(ctx, "carts.line_items.create", http.MethodPost, "/store/carts/"+pathID(cartID)+"/line-items", nil, body)
}

func (c *Client) UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (*Cart, error) {
	if err := requireID("cart id", cartID); err != nil {
		return nil, err
	}
	if err := requireID("line item id", lineID); err != nil {
		return nil, err
	}
	body := map[string]any{"quantity": quantity}
	path := "/store/carts/" + pathID(cartID) + "/line-items/" + pathID(lineID)
	return c.cartCall(ctx, "carts.line_items.update", http.MethodPost, path, nil, body)
}

func (c *Client) DeleteLineItem(ctx context.Context, cartID, lineID string) error {
	if err := requireID("cart id", cartID); err != nil {
		return err
	}
	if err := requireID("line item id", lineID); err != nil {
		return err
	}
	path := "/store/carts/" + pathID(cartID) + "/line-items/" + pathID(lineID)
	return c.do(ctx, "carts.line_items.delete", http.MethodDelete, path, nil, nil, nil)
}

// ListShippingOptions returns the options that can serve cartID.
func (c *Client) ListShippingOptions(ctx context.Context, cartID string) ([]ShippingOption, error) {
	if err := requireID("cart id", cartID); err != nil {
		return nil, err
	}
	var resp struct {
		ShippingOptions []ShippingOption `json:"shipping_options"`
	}
	query := url.Values{"cart_id": []string{cartID}}
	if err := c.do(ctx, "shipping_options.list", http.MethodGet, "/store/shipping-options", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ShippingOptions, nil
}

func (c *Client) AddShippingMethod(ctx context.Context, cartID, optionID string) (*Cart, error) {
	if err := requireID("cart id", cartID); err != nil {
		return nil, err
	}
	if err := requireID("shipping option id", optionID); err != nil {
		return nil, err
	}
	body := map[string]string{"option_id": optionID}
	return c.cartCall(ctx, "carts.shipping_methods.create", http.MethodPost, "/store/carts/"+pathID(cartID)+"/shipping-methods", nil, body)
}

// ListPaymentProviders returns the providers installed for regionID, enabled or not.
func (c *Client) ListPaymentProviders(ctx context.Context, regionID string) ([]PaymentProvider, error) {
	if err := requireID("region id", regionID); err != nil {
		return nil, err
	}
	var resp struct {
		PaymentProviders []PaymentProvider `json:"payment_providers"`
	}
	query := url.Values{"region_id": []string{regionID}}
	if err := c.do(ctx, "payment_providers.list", http.MethodGet, "/store/payment-providers", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.PaymentProviders, nil
}

func (c *Client) CreatePaymentCollection(ctx context.Context, cartID string) (*PaymentCollection, error) {
	if err := requireID("cart id", cartID); err != nil {
		return nil, err
	}
	body := map[string]string{"cart_id": cartID}
	return c.collectionCall(ctx, "payment_collections.create", "/store/payment-collections", body)
}

// InitiatePaymentSession opens a session for providerID and returns the refreshed collection.
func (c *Client) InitiatePaymentSession(ctx context.Context, collectionID, providerID string) (*PaymentCollection, error) {
	if err := requireID("payment collection id", collectionID); err != nil {
		return nil, err
	}
	if err := requireID("provider id", providerID); err != nil {
		return nil, err
	}
	body := map[string]string{"provider_id": providerID}
	return c.collectionCall(ctx, "payment_sessions.create", "/store/payment-collections/"+pathID(collectionID)+"/payment-sessions", body)
}

// CompleteCart turns the cart into an order when payment is authorized.
func (c *Client) CompleteCart(ctx context.Context, cartID string) (*CompleteResult, error) {
	if err := requireID("cart id", cartID); err != nil {
		return nil, err
	}
	var resp CompleteResult
	if err := c.do(ctx, "carts.complete", http.MethodPost, "/store/carts/"+pathID(cartID)+"/complete", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetrieveCustomer loads the profile owning token.
func (c *Client) RetrieveCustomer(ctx context.Context, token string) (*Customer, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer token is required")
	}
	var resp struct {
		Customer Customer `json:"customer"`
	}
	ctx = WithCustomerToken(ctx, token)
	if err := c.do(ctx, "customers.me", http.MethodGet, "/store/customers/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Customer, nil
}

func (c *Client) cartCall(ctx context.Context, op, method, path string, query url.Values, body any) (*Cart, error) {
	var resp struct {
		Cart Cart `json:"cart"`
	}
	if err := c.do(ctx, op, method, path, query, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Cart, nil
}

func (c *Client) collectionCall(ctx context.Context, op, path string, body any) (*PaymentCollection, error) {
	var resp struct {
		PaymentCollection PaymentCollection `json:"payment_collection"`
	}
	if err := c.do(ctx, op, http.MethodPost, path, nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.PaymentCollection, nil
}
