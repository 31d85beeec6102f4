package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a value in minor units of Currency (1000 EUR == 10.00 EUR).
type Amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

func NewAmount(value int64, currency string) (Amount, error) {
	if value < 0 {
		return Amount{}, errors.New("amount cannot be negative")
	}
	if len(currency) != 3 {
		return Amount{}, fmt.Errorf("invalid currency code %q", currency)
	}
	return Amount{Value: value, Currency: currency}, nil
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ParseAmount reads a major unit amount such as "10.50" into minor units.
func ParseAmount(s, currency string) (Amount, error) {
	currency = strings.ToUpper(currency)
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Shift(exponent(currency))
	if !minor.IsInteger() {
		return Amount{}, fmt.Errorf("amount %s has more decimals than %s allows", s, currency)
	}
	if minor.GreaterThan(maxMinorUnits) {
		return Amount{}, fmt.Errorf("amount %s is too large", s)
	}
	return NewAmount(minor.IntPart(), currency)
}

// Covers reports whether a covers other. Amounts in different currencies never cover each other.
func (a Amount) Covers(other Amount) bool {
	return a.Currency == other.Currency && a.Value >= other.Value
}

func (a Amount) IsZero() bool {
	return a.Value == 0
}

func (a Amount) String() string {
	return fmt.Sprintf("%d %s", a.Value, a.Currency)
}

// Format renders a in major units, e.g. "10.50 EUR".
func (a Amount) Format() string {
	e := exponent(a.Currency)
	return decimal.New(a.Value, -e).StringFixed(e) + " " + a.Currency
}

// currencyExponents lists currencies whose minor unit is not a hundredth.
var currencyExponents = map[string]int32{
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
	"CLP": 0, "CVE": 0, "IDR": 0, "ISK": 0, "JPY": 0, "KRW": 0, "PYG": 0,
	"UGX": 0, "VND": 0, "XAF": 0, "XOF": 0,
}

func exponent(currency string) int32 {
	if e, ok := currencyExponents[currency]; ok {
		return e
	}
	return 2
}
