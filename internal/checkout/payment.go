package checkout

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// Phase is the position of a session in the payment lifecycle.
type Phase string

const (
	PhaseUninitialized     Phase = "uninitialized"
	PhaseProvidersLoaded   Phase = "providers_loaded"
	PhaseCollectionCreated Phase = "collection_created"
	PhaseSessionCreated    Phase = "session_created"
	PhaseSessionSelected   Phase = "session_selected"
)

// Event moves the payment phase.
type Event string

const (
	EventProvidersLoaded   Event = "providers_loaded"
	EventCollectionCreated Event = "collection_created"
	EventSessionsCreated   Event = "sessions_created"
	EventSessionSelected   Event = "session_selected"
	EventProviderChanged   Event = "provider_changed"
)

var transitions = map[Phase]map[Event]Phase{
	PhaseUninitialized: {
		EventProvidersLoaded: PhaseProvidersLoaded,
	},
	PhaseProvidersLoaded: {
		EventCollectionCreated: PhaseCollectionCreated,
		EventProviderChanged:   PhaseProvidersLoaded,
	},
	PhaseCollectionCreated: {
		EventSessionsCreated: PhaseSessionCreated,
		EventProviderChanged: PhaseCollectionCreated,
	},
	PhaseSessionCreated: {
		EventSessionSelected: PhaseSessionSelected,
		EventSessionsCreated: PhaseSessionCreated,
		EventProviderChanged: PhaseCollectionCreated,
	},
	PhaseSessionSelected: {
		EventSessionSelected: PhaseSessionSelected,
		EventSessionsCreated: PhaseSessionCreated,
		EventProviderChanged: PhaseCollectionCreated,
	},
}

// On returns the phase reached from p by e, or a state conflict when the
// table has no such edge.
func (p Phase) On(e Event) (Phase, error) {
	if next, ok := transitions[p][e]; ok {
		return next, nil
	}
	return p, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment event %s not allowed in phase %s", e, p)).
		WithDetails(map[string]any{"phase": string(p), "event": string(e)})
}

// Action is a side effect the payment state asks for.
type Action string

const (
	ActionNone             Action = ""
	ActionLoadProviders    Action = "load_providers"
	ActionCreateCollection Action = "create_collection"
	ActionCreateSession    Action = "create_session"
)

type reaction struct {
	action Action
	when   func(p *Payment) bool
}

// reactions are checked in order; the first whose precondition holds fires.
var reactions = []reaction{
	{
		action: ActionLoadProviders,
		when:   func(p *Payment) bool { return p.Phase == PhaseUninitialized },
	},
	{
		action: ActionCreateCollection,
		when: func(p *Payment) bool {
			return p.Phase == PhaseProvidersLoaded && p.Collection == nil && len(p.Providers) > 0
		},
	},
	{
		action: ActionCreateSession,
		when: func(p *Payment) bool {
			return p.SelectedProviderID != "" && p.Collection != nil && p.SelectedSessionID == ""
		},
	},
}

// NextAction reports the reaction due for p, or ActionNone at a fixed point.
func NextAction(p *Payment) Action {
	for _, r := range reactions {
		if r.when(p) {
			return r.action
		}
	}
	return ActionNone
}

// Payment is the payment sub-state of a checkout.
type Payment struct {
	Phase              Phase                       `json:"phase"`
	Providers          []commerce.PaymentProvider  `json:"providers"`
	SelectedProviderID string                      `json:"selected_provider_id,omitempty"`
	Collection         *commerce.PaymentCollection `json:"collection,omitempty"`
	Sessions           []commerce.PaymentSession   `json:"sessions"`
	SelectedSessionID  string                      `json:"selected_session_id,omitempty"`
	Confirmed          bool                        `json:"confirmed"`
	ConfirmedIntentID  string                      `json:"confirmed_intent_id,omitempty"`
}

func newPayment() Payment {
	return Payment{Phase: PhaseUninitialized}
}

func (p *Payment) apply(e Event) error {
	next, err := p.Phase.On(e)
	if err != nil {
		return err
	}
	p.Phase = next
	return nil
}

// SetProviders keeps the enabled providers and selects the preferred one.
func (p *Payment) SetProviders(all []commerce.PaymentProvider) error {
	enabled := make([]commerce.PaymentProvider, 0, len(all))
	for _, provider := range all {
		if provider.IsEnabled {
			enabled = append(enabled, provider)
		}
	}
	if err := p.apply(EventProvidersLoaded); err != nil {
		return err
	}
	p.Providers = enabled
	p.SelectedProviderID = preferredProvider(enabled)
	return nil
}

// SetCollection records the cart's payment collection.
func (p *Payment) SetCollection(c *commerce.PaymentCollection) error {
	if err := p.apply(EventCollectionCreated); err != nil {
		return err
	}
	p.Collection = c
	p.Sessions = c.PaymentSessions
	return nil
}

// SetSessions replaces the session list and selects the first session of the
// selected provider, falling back to the first session.
func (p *Payment) SetSessions(c *commerce.PaymentCollection) error {
	if err := p.apply(EventSessionsCreated); err != nil {
		return err
	}
	p.Collection = c
	p.Sessions = c.PaymentSessions
	p.SelectedSessionID = ""
	p.Confirmed = false
	if len(p.Sessions) == 0 {
		return nil
	}
	chosen := p.Sessions[0].ID
	for _, s := range p.Sessions {
		if s.ProviderID == p.SelectedProviderID {
			chosen = s.ID
			break
		}
	}
	if err := p.apply(EventSessionSelected); err != nil {
		return err
	}
	p.SelectedSessionID = chosen
	return nil
}

// SelectProvider switches provider. The selected session is dropped so the
// session reaction fires again for the new provider.
func (p *Payment) SelectProvider(providerID string) error {
	if !p.hasProvider(providerID) {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment provider is not available").
			WithDetails(map[string]any{"provider_id": providerID})
	}
	if providerID == p.SelectedProviderID && p.SelectedSessionID != "" {
		return nil
	}
	if err := p.apply(EventProviderChanged); err != nil {
		return err
	}
	p.SelectedProviderID = providerID
	p.SelectedSessionID = ""
	p.Confirmed = false
	return nil
}

// SelectedSession returns the session picked for confirmation.
func (p *Payment) SelectedSession() *commerce.PaymentSession {
	for i := range p.Sessions {
		if p.Sessions[i].ID == p.SelectedSessionID {
			return &p.Sessions[i]
		}
	}
	return nil
}

// ShowCardForm is true when the card input should be rendered.
func (p *Payment) ShowCardForm() bool {
	return strings.Contains(p.SelectedProviderID, "stripe") && p.SelectedSession() != nil
}

// CanConfirm is true when the selected session carries a gateway client secret.
func (p *Payment) CanConfirm() bool {
	s := p.SelectedSession()
	return s != nil && s.ClientSecret() != ""
}

func (p *Payment) hasProvider(id string) bool {
	for _, provider := range p.Providers {
		if provider.ID == id {
			return true
		}
	}
	return false
}

func preferredProvider(providers []commerce.PaymentProvider) string {
	for _, provider := range providers {
		if strings.Contains(provider.ID, "stripe") {
			return provider.ID
		}
	}
	if len(providers) > 0 {
		return providers[0].ID
	}
	return ""
}
