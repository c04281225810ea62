package gateway

import (
	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// The gateway names its session token differently per flow: checkout
// responses carry a payment resource with a paymentToken, vault responses an
// agreement setup with a tokenId. The request and response shapes below
// normalize both into the one session id the state machine tracks.

type sessionBody struct {
	ReturnURL string `json:"returnUrl"`
	CancelURL string `json:"cancelUrl"`

	Amount       string `json:"amount,omitempty"`
	CurrencyCode string `json:"currencyIsoCode,omitempty"`
	Intent       string `json:"intent,omitempty"`

	Description string `json:"description,omitempty"`

	BrandName         string                 `json:"brandName,omitempty"`
	LocaleCode        string                 `json:"localeCode,omitempty"`
	NoShipping        string                 `json:"noShipping,omitempty"`
	AddressOverride   *types.Address         `json:"shippingAddressOverride,omitempty"`
	ShippingOptions   []types.ShippingOption `json:"shippingOptions,omitempty"`
	OfferPaypalCredit bool                   `json:"offerPaypalCredit,omitempty"`
}

func newSessionBody(req *types.SessionRequest) sessionBody {
	body := sessionBody{
		// The hosted SDK drives the approval UI itself; the redirect
		// URLs are placeholders the gateway requires but never follows.
		ReturnURL:         "https://paypal.com/checkout/return",
		CancelURL:         "https://paypal.com/checkout/cancel",
		BrandName:         req.DisplayName,
		LocaleCode:        req.Locale,
		AddressOverride:   req.ShippingAddressOverride,
		ShippingOptions:   req.ShippingOptions,
		OfferPaypalCredit: req.OfferCredit,
	}
	if !req.EnableShippingAddress {
		body.NoShipping = "true"
	}

	switch req.Flow {
	case types.FlowCheckout:
		body.Amount = req.Amount
		body.CurrencyCode = req.Currency
		body.Intent = string(req.Intent)
	case types.FlowVault:
		body.Description = req.BillingAgreementDescription
	}
	return body
}

// sessionResponse accepts both response shapes.
type sessionResponse struct {
	PaymentResource struct {
		PaymentToken string `json:"paymentToken"`
		RedirectURL  string `json:"redirectUrl"`
	} `json:"paymentResource"`
	AgreementSetup struct {
		TokenID     string `json:"tokenId"`
		ApprovalURL string `json:"approvalUrl"`
	} `json:"agreementSetup"`
}

func (r *sessionResponse) sessionID(flow types.Flow) string {
	if flow == types.FlowVault {
		return r.AgreementSetup.TokenID
	}
	return r.PaymentResource.PaymentToken
}

type paypalAccount struct {
	PayerID          string `json:"payerId,omitempty"`
	PaymentToken     string `json:"paymentToken,omitempty"`
	BillingToken     string `json:"billingToken,omitempty"`
	ShippingOptionID string `json:"shippingOptionId,omitempty"`
	Vault            *bool  `json:"vault,omitempty"`
}

type tokenizeBody struct {
	PayPalAccount paypalAccount `json:"paypalAccount"`
}

type tokenizeResponse struct {
	PayPalAccounts []struct {
		Nonce   string          `json:"nonce"`
		Type    string          `json:"type"`
		Details types.PayerInfo `json:"details"`
		Vaulted bool            `json:"vaulted"`
	} `json:"paypalAccounts"`
}

func (r *tokenizeResponse) credential() *types.Credential {
	if len(r.PayPalAccounts) == 0 || r.PayPalAccounts[0].Nonce == "" {
		return nil
	}
	account := r.PayPalAccounts[0]
	credType := account.Type
	if credType == "" {
		credType = "PayPalAccount"
	}
	return &types.Credential{
		Nonce:   account.Nonce,
		Type:    credType,
		Details: account.Details,
		Vaulted: account.Vaulted,
	}
}
