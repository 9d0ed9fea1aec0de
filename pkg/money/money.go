package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var symbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"dkk": "kr ",
	"brl": "R$",
	"try": "₺",
	"jpy": "¥",
}

var zeroDecimal = map[string]bool{
	"jpy": true,
	"krw": true,
	"clp": true,
	"vnd": true,
}

// Format renders an amount in minor units, e.g. Format(5750, "usd") == "$57.50".
// Unknown currencies render as "57.50 XYZ".
func Format(minor int64, currency string) string {
	code := strings.ToLower(strings.TrimSpace(currency))
	places := int32(2)
	if zeroDecimal[code] {
		places = 0
	}

	amount := decimal.New(minor, -places).StringFixed(places)
	if strings.HasPrefix(amount, "-") {
		return "-" + withSymbol(strings.TrimPrefix(amount, "-"), code)
	}
	return withSymbol(amount, code)
}

func withSymbol(amount, code string) string {
	if sym, ok := symbols[code]; ok {
		return sym + amount
	}
	if code == "" {
		return amount
	}
	return amount + " " + strings.ToUpper(code)
}
