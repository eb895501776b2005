package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits persisted for every monetary column.
const MoneyScale int32 = 6

// Money is an exact decimal amount tied to a currency code. Arithmetic keeps full
// working precision; rounding happens only through Round and String.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney creates a Money value.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{amount: amount, currency: currency}
}

// ZeroMoney returns zero in the given currency.
func ZeroMoney(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// MoneyFromString parses amount. Used by request decoding and tests.
func MoneyFromString(currency, amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: invalid amount %q: %v", ErrValidation, amount, err)
	}
	return Money{amount: d, currency: currency}, nil
}

// MustMoney is MoneyFromString that panics on a malformed amount.
func MustMoney(currency, amount string) Money {
	m, err := MoneyFromString(currency, amount)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }
func (m Money) IsNegative() bool        { return m.amount.IsNegative() }

// Zero returns a zero amount in m's currency.
func (m Money) Zero() Money { return ZeroMoney(m.currency) }

// Plus returns m + other. Both operands come from the same aggregate, so a
// mismatch is a defect: it panics with an error wrapping ErrCurrencyMismatch,
// which aggregate entry points turn back into an error via recoverMismatch.
func (m Money) Plus(other Money) Money {
	m.mustMatch(other)
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}
}

// Minus returns m - other. The result may be negative.
func (m Money) Minus(other Money) Money {
	m.mustMatch(other)
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}
}

// MinusOrZero returns m - other saturated at zero.
func (m Money) MinusOrZero(other Money) Money {
	r := m.Minus(other)
	if r.IsNegative() {
		return r.Zero()
	}
	return r
}

// OrZero clamps a negative amount to zero.
func (m Money) OrZero() Money {
	if m.IsNegative() {
		return m.Zero()
	}
	return m
}

func (m Money) MultipliedBy(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

func (m Money) DividedBy(divisor decimal.Decimal) Money {
	return Money{amount: m.amount.Div(divisor), currency: m.currency}
}

// PercentageOf returns pct percent of m.
func (m Money) PercentageOf(pct decimal.Decimal) Money {
	return m.MultipliedBy(pct).DividedBy(decimal.NewFromInt(100))
}

func (m Money) GreaterThan(other Money) bool {
	m.mustMatch(other)
	return m.amount.GreaterThan(other.amount)
}

func (m Money) GreaterThanOrEqual(other Money) bool {
	m.mustMatch(other)
	return m.amount.GreaterThanOrEqual(other.amount)
}

func (m Money) LessThan(other Money) bool {
	m.mustMatch(other)
	return m.amount.LessThan(other.amount)
}

// Equal compares amount and currency. It never panics.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Round rounds half-up to MoneyScale fractional digits.
func (m Money) Round() Money {
	return Money{amount: m.amount.Round(MoneyScale), currency: m.currency}
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(MoneyScale), m.currency)
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.amount, m.currency = v.Amount, v.Currency
	return nil
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (m Money) checkCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %q and %q", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

func (m Money) mustMatch(other Money) {
	if err := m.checkCurrency(other); err != nil {
		panic(err)
	}
}

// recoverMismatch converts a currency-mismatch panic raised by Money arithmetic into
// an error. Any other panic is re-raised. Use as: defer recoverMismatch(&err).
func recoverMismatch(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if err, ok := r.(error); ok && errors.Is(err, ErrCurrencyMismatch) {
		*errp = err
		return
	}
	panic(r)
}
