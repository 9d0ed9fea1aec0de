package checkout

import (
	"context"
	"fmt"
	"net/url"

	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/money"
)

const confirmationPath = "/orders/%s/confirmation"

type ProgressItem struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Active    bool   `json:"active"`
	Completed bool   `json:"completed"`
}

type SummaryLine struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

// Summary is the order summary column of the page with display-formatted amounts.
type Summary struct {
	Lines        []SummaryLine `json:"lines"`
	ItemCount    int           `json:"item_count"`
	Subtotal     string        `json:"subtotal"`
	Shipping     string        `json:"shipping"`
	Tax          string        `json:"tax"`
	Total        string        `json:"total"`
	CurrencyCode string        `json:"currency_code"`
}

type AddressesView struct {
	ShippingChoices       []commerce.Address `json:"shipping_choices"`
	BillingChoices        []commerce.Address `json:"billing_choices"`
	SelectedShippingID    string             `json:"selected_shipping_id,omitempty"`
	SelectedBillingID     string             `json:"selected_billing_id,omitempty"`
	BillingSameAsShipping bool               `json:"billing_same_as_shipping"`
}

type ShippingOptionView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Selected bool   `json:"selected"`
}

type ShippingView struct {
	Options          []ShippingOptionView `json:"options"`
	SelectedOptionID string               `json:"selected_option_id,omitempty"`
}

type PaymentView struct {
	Phase              Phase                      `json:"phase"`
	Providers          []commerce.PaymentProvider `json:"providers"`
	SelectedProviderID string                     `json:"selected_provider_id,omitempty"`
	SelectedSessionID  string                     `json:"selected_session_id,omitempty"`
	ShowCardForm       bool                       `json:"show_card_form"`
	CanConfirm         bool                       `json:"can_confirm"`
	Confirmed          bool                       `json:"confirmed"`
}

type ReviewView struct {
	Email           string            `json:"email,omitempty"`
	ShippingAddress *commerce.Address `json:"shipping_address,omitempty"`
	BillingAddress  *commerce.Address `json:"billing_address,omitempty"`
	ShippingMethod  string            `json:"shipping_method,omitempty"`
	CanComplete     bool              `json:"can_complete"`
}

// Page is the full checkout screen for the active step.
type Page struct {
	Step      Step           `json:"step"`
	StepTitle string         `json:"step_title"`
	Progress  []ProgressItem `json:"progress"`
	Summary   *Summary       `json:"summary,omitempty"`
	NoItems   bool           `json:"no_items"`
	Addresses *AddressesView `json:"addresses,omitempty"`
	Shipping  *ShippingView  `json:"shipping,omitempty"`
	Payment   *PaymentView   `json:"payment,omitempty"`
	Review    *ReviewView    `json:"review,omitempty"`
	Error     string         `json:"error,omitempty"`
	Redirect  string         `json:"redirect,omitempty"`
}

// Page syncs the customer onto the cart and returns the active step view.
func (s *service) Page(ctx context.Context, actor Actor) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if o.state.pendingCompletion() || !o.hasItems() {
			return nil
		}
		s.syncCustomer(ctx, o)
		return nil
	})
}

// prepare loads whatever the active step shows. Failures land in the error
// slot; only a rejected customer token fails the request.
func (s *service) prepare(ctx context.Context, o *op) error {
	if o.state.pendingCompletion() || !o.hasItems() {
		return nil
	}
	var err error
	switch o.state.Step {
	case StepAddresses:
		err = s.loadCustomerContext(ctx, o)
	case StepShipping:
		if o.state.ShippingOptions == nil {
			err = s.loadShippingOptions(ctx, o)
		}
	case StepPayment:
		err = s.react(ctx, o)
	}
	if err == nil {
		return nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		return err
	}
	s.logg.Warn(ctx, "checkout.prepare_failed")
	o.state.Error = userMessage(err)
	return nil
}

// buildPage renders the state. A pending completion yields the redirect and
// marks it signaled so it is emitted only once.
func (s *service) buildPage(o *op) *Page {
	st := o.state
	page := &Page{
		Step:      st.Step,
		StepTitle: st.Step.String(),
		Progress:  progress(st.Step),
		Error:     st.Error,
	}

	if st.pendingCompletion() {
		page.Redirect = fmt.Sprintf(confirmationPath, url.PathEscape(st.CompletedOrder.ID))
		st.CompletionSignaled = true
		return page
	}
	if !o.hasItems() {
		page.NoItems = true
		return page
	}

	page.Summary = summarize(o.cart)
	switch st.Step {
	case StepAddresses:
		page.Addresses = addressesView(o)
	case StepShipping:
		page.Shipping = shippingView(o)
	case StepPayment:
		page.Payment = paymentView(&st.Payment)
	case StepReview:
		page.Review = reviewView(o)
	}
	return page
}

func progress(active Step) []ProgressItem {
	steps := Steps()
	items := make([]ProgressItem, 0, len(steps))
	for _, step := range steps {
		items = append(items, ProgressItem{
			Index:     int(step),
			Title:     step.String(),
			Active:    step == active,
			Completed: step < active,
		})
	}
	return items
}

func summarize(c *commerce.Cart) *Summary {
	currency := c.CurrencyCode
	lines := make([]SummaryLine, 0, len(c.Items))
	for _, item := range c.Items {
		total := item.Subtotal
		if total == 0 {
			total = item.UnitPrice * int64(item.Quantity)
		}
		lines = append(lines, SummaryLine{
			ID:        item.ID,
			Title:     item.Title,
			Thumbnail: item.Thumbnail,
			Quantity:  item.Quantity,
			UnitPrice: money.Format(item.UnitPrice, currency),
			Total:     money.Format(total, currency),
		})
	}
	return &Summary{
		Lines:        lines,
		ItemCount:    c.ItemCount(),
		Subtotal:     money.Format(c.Subtotal, currency),
		Shipping:     money.Format(c.ShippingTotal, currency),
		Tax:          money.Format(c.TaxTotal, currency),
		Total:        money.Format(c.Total, currency),
		CurrencyCode: currency,
	}
}

func addressesView(o *op) *AddressesView {
	view := &AddressesView{
		ShippingChoices: []commerce.Address{},
		BillingChoices:  []commerce.Address{},
	}
	if o.profile == nil || o.profile.Customer == nil {
		view.BillingSameAsShipping = true
		return view
	}
	book := o.profile.Customer.Addresses
	view.ShippingChoices = address.ShippingChoices(book)
	view.BillingChoices = append(view.BillingChoices, book...)
	if billing := o.profile.Customer.BillingAddress; billing != nil && billing.ID != "" {
		if _, inBook := address.FindByID(book, billing.ID); !inBook {
			view.BillingChoices = append(view.BillingChoices, *billing)
		}
	}

	view.SelectedShippingID = o.state.ShippingAddressID
	if view.SelectedShippingID == "" && o.profile.DefaultShipping != nil {
		view.SelectedShippingID = o.profile.DefaultShipping.ID
	}
	view.SelectedBillingID = o.state.BillingAddressID
	if view.SelectedBillingID == "" && o.state.ShippingAddressID == "" && o.profile.DefaultBilling != nil {
		view.SelectedBillingID = o.profile.DefaultBilling.ID
	}
	view.BillingSameAsShipping = view.SelectedBillingID == ""
	return view
}

func shippingView(o *op) *ShippingView {
	currency := ""
	if o.cart != nil {
		currency = o.cart.CurrencyCode
	}
	view := &ShippingView{
		Options:          make([]ShippingOptionView, 0, len(o.state.ShippingOptions)),
		SelectedOptionID: o.state.SelectedShippingOptionID,
	}
	for _, option := range o.state.ShippingOptions {
		optionCurrency := option.CurrencyCode
		if optionCurrency == "" {
			optionCurrency = currency
		}
		view.Options = append(view.Options, ShippingOptionView{
			ID:       option.ID,
			Name:     option.Name,
			Price:    money.Format(option.Amount, optionCurrency),
			Selected: option.ID == o.state.SelectedShippingOptionID,
		})
	}
	return view
}

func paymentView(p *Payment) *PaymentView {
	providers := p.Providers
	if providers == nil {
		providers = []commerce.PaymentProvider{}
	}
	return &PaymentView{
		Phase:              p.Phase,
		Providers:          providers,
		SelectedProviderID: p.SelectedProviderID,
		SelectedSessionID:  p.SelectedSessionID,
		ShowCardForm:       p.ShowCardForm(),
		CanConfirm:         p.CanConfirm(),
		Confirmed:          p.Confirmed,
	}
}

func reviewView(o *op) *ReviewView {
	view := &ReviewView{
		Email:           o.cart.Email,
		ShippingAddress: o.cart.ShippingAddress,
		BillingAddress:  o.cart.BillingAddress,
		CanComplete:     o.state.Payment.SelectedSessionID != "",
	}
	if len(o.cart.ShippingMethods) > 0 {
		view.ShippingMethod = o.cart.ShippingMethods[0].Name
	}
	return view
}
