package checkout

import (
	"github.com/hostedpay-rs/hostedpay-go/pkg/region"
	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// Validate checks a PaymentIntentSpec against the flow-specific field rules
// and returns the normalized session request the gateway consumes.
//
// Validation is pure: every failure is reported before any network call is
// made, so a rejected spec never leaves a partially created session behind.
func Validate(spec types.PaymentIntentSpec) (*types.SessionRequest, error) {
	if spec.Flow == "" {
		return nil, types.NewMissingRequiredFieldError("flow")
	}
	if !spec.Flow.IsValid() {
		return nil, types.NewInvalidFieldError("flow", "must be \"vault\" or \"checkout\"")
	}

	req := &types.SessionRequest{
		Flow:                    spec.Flow,
		DisplayName:             spec.DisplayName,
		Locale:                  spec.Locale,
		EnableShippingAddress:   spec.EnableShippingAddress,
		ShippingAddressOverride: spec.ShippingAddressOverride,
		ShippingOptions:         spec.ShippingOptions,
		OfferCredit:             spec.OfferCredit,
	}

	switch spec.Flow {
	case types.FlowVault:
		if spec.Amount != "" {
			return nil, types.NewConflictingFlowFieldsError(spec.Flow, "amount")
		}
		if spec.Currency != "" {
			return nil, types.NewConflictingFlowFieldsError(spec.Flow, "currency")
		}
		if spec.Intent != "" {
			return nil, types.NewConflictingFlowFieldsError(spec.Flow, "intent")
		}
		req.BillingAgreementDescription = spec.BillingAgreementDescription

	case types.FlowCheckout:
		if spec.BillingAgreementDescription != "" {
			return nil, types.NewConflictingFlowFieldsError(spec.Flow, "billingAgreementDescription")
		}
		minor, currency, err := validateAmount(spec.Amount, spec.Currency)
		if err != nil {
			return nil, err
		}
		req.Amount = spec.Amount
		req.Currency = currency
		req.AmountMinorUnits = minor

		intent := spec.Intent
		if intent == "" {
			intent = types.IntentAuthorize
		}
		if !intent.IsValid() {
			return nil, types.NewInvalidFieldError("intent", "must be \"authorize\", \"order\" or \"capture\"")
		}
		req.Intent = intent
	}

	if spec.Locale != "" && !region.IsSupportedLocale(spec.Locale) {
		return nil, types.NewInvalidFieldError("locale", "unsupported locale code")
	}

	if err := validateShippingOptions(spec.ShippingOptions); err != nil {
		return nil, err
	}

	return req, nil
}

// ValidateVaultInitiated checks the options of the vault-initiated checkout
// variant. The variant is implicitly a checkout: amount and currency are
// required alongside the previously vaulted payment method token.
func ValidateVaultInitiated(opts types.VaultInitiatedCheckoutOptions) (*types.SessionRequest, error) {
	if opts.PaymentMethodToken == "" {
		return nil, types.NewMissingRequiredFieldError("vaultInitiatedCheckoutPaymentMethodToken")
	}
	minor, currency, err := validateAmount(opts.Amount, opts.Currency)
	if err != nil {
		return nil, err
	}
	if opts.Locale != "" && !region.IsSupportedLocale(opts.Locale) {
		return nil, types.NewInvalidFieldError("locale", "unsupported locale code")
	}
	if err := validateShippingOptions(opts.ShippingOptions); err != nil {
		return nil, err
	}

	return &types.SessionRequest{
		Flow:                             types.FlowCheckout,
		Intent:                           types.IntentAuthorize,
		Amount:                           opts.Amount,
		Currency:                         currency,
		AmountMinorUnits:                 minor,
		Locale:                           opts.Locale,
		ShippingOptions:                  opts.ShippingOptions,
		VaultInitiatedPaymentMethodToken: opts.PaymentMethodToken,
	}, nil
}

func validateAmount(amount, currency string) (int64, string, error) {
	if amount == "" {
		return 0, "", types.NewMissingRequiredFieldError("amount")
	}
	if currency == "" {
		return 0, "", types.NewMissingRequiredFieldError("currency")
	}
	info, err := region.GetCurrencyInfo(currency)
	if err != nil {
		return 0, "", types.NewInvalidFieldError("currency", "unsupported ISO currency code")
	}
	minor, err := region.ParseAmount(amount, info.Decimals)
	if err != nil {
		return 0, "", types.NewInvalidFieldError("amount", err.Error())
	}
	return minor, info.Code, nil
}

// validateShippingOptions applies the registry construction rules up front so
// a conflicting option set fails before the gateway is contacted.
func validateShippingOptions(options []types.ShippingOption) error {
	if len(options) == 0 {
		return nil
	}
	_, err := NewShippingRegistry(options)
	return err
}
