package types

// Flow selects between the two structurally different checkout experiences.
type Flow string

const (
	// FlowVault stores a reusable payment method without charging it.
	FlowVault Flow = "vault"
	// FlowCheckout performs a one-time payment with an immediate amount.
	FlowCheckout Flow = "checkout"
)

// Intent describes what the gateway should do with an approved checkout.
type Intent string

const (
	IntentAuthorize Intent = "authorize"
	IntentOrder     Intent = "order"
	IntentCapture   Intent = "capture"
)

// ShippingType distinguishes delivery from in-store pickup options.
type ShippingType string

const (
	ShippingTypeShipping ShippingType = "SHIPPING"
	ShippingTypePickup   ShippingType = "PICKUP"
)

// SessionState is the lifecycle state of a payment session.
type SessionState string

const (
	StateUninitialized    SessionState = "uninitialized"
	StateSessionCreated   SessionState = "session_created"
	StateAwaitingApproval SessionState = "awaiting_approval"
	StateApproved         SessionState = "approved"
	StateCancelled        SessionState = "cancelled"
	StateFailed           SessionState = "failed"
	StateTokenized        SessionState = "tokenized"
	StateTornDown         SessionState = "torn_down"
)

// IsTerminal reports whether no further transitions can happen from s,
// other than teardown.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateTokenized, StateTornDown, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// IsValid reports whether f is a member of the closed flow set.
func (f Flow) IsValid() bool {
	return f == FlowVault || f == FlowCheckout
}

// IsValid reports whether i is a member of the closed intent set.
func (i Intent) IsValid() bool {
	switch i {
	case IntentAuthorize, IntentOrder, IntentCapture:
		return true
	default:
		return false
	}
}

// IsValid reports whether t is a member of the closed shipping type set.
func (t ShippingType) IsValid() bool {
	return t == ShippingTypeShipping || t == ShippingTypePickup
}

// Address is a postal address passed through to the gateway.
//
// Fields are opaque to the orchestrator: no validation beyond presence is
// performed here, the hosted flow and gateway own address semantics.
type Address struct {
	Line1         string `json:"line1,omitempty"`
	Line2         string `json:"line2,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	CountryCode   string `json:"countryCode,omitempty"`
	Phone         string `json:"phone,omitempty"`
	RecipientName string `json:"recipientName,omitempty"`
}

// ShippingOption is a priced delivery or pickup choice offered to the buyer
// during approval. IDs are caller-assigned and must be unique within a session.
type ShippingOption struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Type     ShippingType `json:"type"`
	Selected bool         `json:"selected"`
	Amount   string       `json:"amount"`
	Currency string       `json:"currency,omitempty"`
}

// PaymentIntentSpec is the caller's request to start a payment session.
//
// The required-field sets for vault and checkout are mutually exclusive;
// the validator rejects any mix before a gateway call is made.
type PaymentIntentSpec struct {
	Flow   Flow   `json:"flow"`
	Intent Intent `json:"intent,omitempty"`

	// Checkout-only fields.
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`

	// Vault-only fields.
	BillingAgreementDescription string `json:"billingAgreementDescription,omitempty"`

	// Display and pass-through fields, valid for both flows.
	DisplayName             string           `json:"displayName,omitempty"`
	Locale                  string           `json:"locale,omitempty"`
	EnableShippingAddress   bool             `json:"enableShippingAddress,omitempty"`
	ShippingAddressOverride *Address         `json:"shippingAddressOverride,omitempty"`
	ShippingOptions         []ShippingOption `json:"shippingOptions,omitempty"`
	OfferCredit             bool             `json:"offerCredit,omitempty"`
}

// VaultInitiatedCheckoutOptions resumes a previously vaulted payment method
// directly into the hosted flow, skipping session creation.
//
// The variant carries no Flow field: it is implicitly a checkout, and the
// closed type makes setting a flow unrepresentable.
type VaultInitiatedCheckoutOptions struct {
	PaymentMethodToken string           `json:"vaultInitiatedCheckoutPaymentMethodToken"`
	Amount             string           `json:"amount"`
	Currency           string           `json:"currency"`
	Locale             string           `json:"locale,omitempty"`
	ShippingOptions    []ShippingOption `json:"shippingOptions,omitempty"`
}

// SessionRequest is the validated, normalized form of a PaymentIntentSpec.
// It is produced by the session validator and is what the gateway bridge
// consumes; construction outside the validator is not supported.
type SessionRequest struct {
	Flow   Flow   `json:"flow"`
	Intent Intent `json:"intent,omitempty"`

	Amount           string `json:"amount,omitempty"`
	Currency         string `json:"currencyIsoCode,omitempty"`
	AmountMinorUnits int64  `json:"-"`

	BillingAgreementDescription string `json:"description,omitempty"`

	DisplayName             string           `json:"brandName,omitempty"`
	Locale                  string           `json:"localeCode,omitempty"`
	EnableShippingAddress   bool             `json:"enableShippingAddress,omitempty"`
	ShippingAddressOverride *Address         `json:"shippingAddressOverride,omitempty"`
	ShippingOptions         []ShippingOption `json:"shippingOptions,omitempty"`
	OfferCredit             bool             `json:"offerPaypalCredit,omitempty"`

	// Set only for the vault-initiated checkout variant.
	VaultInitiatedPaymentMethodToken string `json:"-"`
}

// ApprovalPayload is delivered by the hosted-flow bridge when the buyer
// approves the payment in the hosted UI.
type ApprovalPayload struct {
	PayerID string `json:"payerId"`

	// Flow-dependent session identifier: an order/payment token for
	// checkout, a billing agreement token for vault.
	PaymentToken string `json:"paymentToken,omitempty"`
	BillingToken string `json:"billingToken,omitempty"`

	ShippingOptionID string `json:"shippingOptionId,omitempty"`

	// Vault overrides the session's default vaulting behaviour at
	// approval time; nil keeps the default.
	Vault *bool `json:"vault,omitempty"`
}

// SessionID returns the flow-dependent identifier carried by the payload.
func (p *ApprovalPayload) SessionID() string {
	if p.PaymentToken != "" {
		return p.PaymentToken
	}
	return p.BillingToken
}

// PayerInfo describes the buyer as reported by the gateway after tokenization.
type PayerInfo struct {
	Email           string   `json:"email,omitempty"`
	FirstName       string   `json:"firstName,omitempty"`
	LastName        string   `json:"lastName,omitempty"`
	PayerID         string   `json:"payerId,omitempty"`
	CountryCode     string   `json:"countryCode,omitempty"`
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	BillingAddress  *Address `json:"billingAddress,omitempty"`
}

// Credential is the single-use payment credential produced by tokenization.
// The orchestrator never persists it; the caller forwards it to its own
// backend for settlement.
type Credential struct {
	Nonce     string          `json:"nonce"`
	Type      string          `json:"type"`
	Details   PayerInfo       `json:"details"`
	Shipping  *ShippingOption `json:"shippingOption,omitempty"`
	Vaulted   bool            `json:"vaulted,omitempty"`
	SessionID string          `json:"-"`
}

// GatewayConfiguration is the merchant configuration returned by the gateway,
// needed to bootstrap the hosted SDK in the buyer's context.
type GatewayConfiguration struct {
	ClientID     string `json:"paypalClientId"`
	Environment  string `json:"environment"`
	AssetsURL    string `json:"assetsUrl,omitempty"`
	MerchantID   string `json:"merchantId,omitempty"`
	CurrencyCode string `json:"currencyIsoCode,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
}
