package money

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Currency represents an ISO 4217 currency code
type Currency string

const (
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CHF Currency = "CHF"
	SEK Currency = "SEK"
	JPY Currency = "JPY"
)

var minorUnits = map[Currency]int{
	EUR: 2,
	GBP: 2,
	CHF: 2,
	SEK: 2,
	JPY: 0,
}

// MinorUnits returns the number of decimal places for a currency, 2 when unknown
func MinorUnits(c Currency) int {
	if u, ok := minorUnits[c]; ok {
		return u
	}
	return 2
}

// Money represents a monetary amount in minor units (cents, pence, etc.)
type Money struct {
	AmountMinor int64
	Currency    Currency
}

// New creates a new Money value from minor units
func New(amountMinor int64, currency Currency) Money {
	return Money{AmountMinor: amountMinor, Currency: currency}
}

// Parse reads a decimal amount string such as "123.45"
func Parse(amount string, currency Currency) (Money, error) {
	units := MinorUnits(currency)
	whole, frac, _ := strings.Cut(strings.TrimSpace(amount), ".")
	if len(frac) > units {
		return Money{}, fmt.Errorf("amount %q has more than %d decimals", amount, units)
	}
	frac += strings.Repeat("0", units-len(frac))
	minor, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	return Money{AmountMinor: minor, Currency: currency}, nil
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.AmountMinor > 0
}

// Amount formats the amount with the currency's decimals
func (m Money) Amount() string {
	units := MinorUnits(m.Currency)
	if units == 0 {
		return strconv.FormatInt(m.AmountMinor, 10)
	}
	major := float64(m.AmountMinor) / math.Pow(10, float64(units))
	return strconv.FormatFloat(major, 'f', units, 64)
}

// String returns a human-readable representation
func (m Money) String() string {
	return m.Amount() + " " + string(m.Currency)
}

type wireAmount struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// MarshalJSON writes the XS2A amount object
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAmount{Currency: string(m.Currency), Amount: m.Amount()})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var v wireAmount
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := Parse(v.Amount, Currency(v.Currency))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
