package region

import (
	"fmt"
	"math/big"
	"strings"
)

// CurrencyInfo contains metadata about a settlement currency.
type CurrencyInfo struct {
	Code     string
	Name     string
	Decimals uint8
}

var (
	// CurrencyInfoMap maps ISO currency codes to their information.
	// This is the closed set of currencies the hosted flow settles in.
	CurrencyInfoMap = map[string]CurrencyInfo{
		"USD": {Code: "USD", Name: "US Dollar", Decimals: 2},
		"EUR": {Code: "EUR", Name: "Euro", Decimals: 2},
		"GBP": {Code: "GBP", Name: "Pound Sterling", Decimals: 2},
		"AUD": {Code: "AUD", Name: "Australian Dollar", Decimals: 2},
		"CAD": {Code: "CAD", Name: "Canadian Dollar", Decimals: 2},
		"CHF": {Code: "CHF", Name: "Swiss Franc", Decimals: 2},
		"DKK": {Code: "DKK", Name: "Danish Krone", Decimals: 2},
		"NOK": {Code: "NOK", Name: "Norwegian Krone", Decimals: 2},
		"SEK": {Code: "SEK", Name: "Swedish Krona", Decimals: 2},
		"PLN": {Code: "PLN", Name: "Polish Zloty", Decimals: 2},
		"JPY": {Code: "JPY", Name: "Japanese Yen", Decimals: 0},
		"HUF": {Code: "HUF", Name: "Hungarian Forint", Decimals: 0},
		"TWD": {Code: "TWD", Name: "New Taiwan Dollar", Decimals: 0},
	}

	// SupportedLocales is the closed set of buyer locales the hosted UI
	// can render. Keys are BCP-47-ish codes as the gateway expects them.
	SupportedLocales = map[string]struct{}{
		"da_DK": {}, "de_DE": {}, "en_AU": {}, "en_GB": {}, "en_US": {},
		"es_ES": {}, "fr_CA": {}, "fr_FR": {}, "id_ID": {}, "it_IT": {},
		"ja_JP": {}, "ko_KR": {}, "nl_NL": {}, "no_NO": {}, "pl_PL": {},
		"pt_BR": {}, "pt_PT": {}, "ru_RU": {}, "sv_SE": {}, "th_TH": {},
		"zh_CN": {}, "zh_HK": {}, "zh_TW": {},
	}
)

// GetCurrencyInfo returns information about a currency code.
func GetCurrencyInfo(code string) (CurrencyInfo, error) {
	info, ok := CurrencyInfoMap[strings.ToUpper(code)]
	if !ok {
		return CurrencyInfo{}, fmt.Errorf("unknown currency: %s", code)
	}
	return info, nil
}

// IsSupportedCurrency checks whether code is part of the closed currency set.
func IsSupportedCurrency(code string) bool {
	_, ok := CurrencyInfoMap[strings.ToUpper(code)]
	return ok
}

// IsSupportedLocale checks whether locale is part of the closed locale set.
func IsSupportedLocale(locale string) bool {
	_, ok := SupportedLocales[locale]
	return ok
}

// ParseAmount parses a positive decimal amount string into minor units for
// the given currency decimals. It rejects zero, negative, and non-numeric
// values, and values with more fractional digits than the currency carries.
func ParseAmount(amount string, decimals uint8) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(amount, "-") || strings.HasPrefix(amount, "+") {
		return 0, fmt.Errorf("amount must be an unsigned decimal: %s", amount)
	}

	whole, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		whole, frac = amount[:i], amount[i+1:]
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid amount: %s", amount)
	}
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("amount %s has more than %d fractional digits", amount, decimals)
	}

	// Right-pad the fraction to the currency's minor unit width.
	frac += strings.Repeat("0", int(decimals)-len(frac))

	digits := whole + frac
	if digits == "" {
		digits = "0"
	}
	minor, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return 0, fmt.Errorf("invalid amount: %s", amount)
	}
	if minor.Sign() <= 0 {
		return 0, fmt.Errorf("amount must be positive: %s", amount)
	}
	if !minor.IsInt64() {
		return 0, fmt.Errorf("amount out of range: %s", amount)
	}
	return minor.Int64(), nil
}
