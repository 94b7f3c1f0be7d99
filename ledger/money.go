/*
money.go - Fixed-point money values

PURPOSE:
  Every amount that flows through the ledger is a Money: a decimal value
  normalized to exactly 2 fraction digits with financial rounding
  (round half up). Binary floating point is never used for arithmetic;
  float inputs are converted through their decimal representation once,
  at the boundary, and quantized immediately.

NORMALIZATION RULE:
  10.005 -> 10.01   (half rounds away from zero)
  10.004 -> 10.00

TOLERANCE:
  Settlement comparisons allow a slack of 0.005 (half a cent) to absorb
  rounding drift accumulated across many events. See SettlementEpsilon.

SEE ALSO:
  - types.go: Event carries a signed Money amount
  - balance.go: balances are sums of signed Money
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal value quantized to 2 fraction digits, round half up
// =============================================================================

// Money is an exact monetary value. The zero value is 0.00.
// Money is immutable; all operations return a new value.
type Money struct {
	d decimal.Decimal
}

// SettlementEpsilon is the slack used when comparing balances against
// payments or zero: anything within half a cent counts as settled.
var SettlementEpsilon = decimal.New(5, -3) // 0.005

// quantize applies the canonical 2-decimal round-half-up normalization.
func quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParseMoney parses a decimal string ("10.50", "-3", "0.005") into a
// normalized Money. Returns ErrInvalidAmount when the input is not a
// finite decimal number.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: quantize(d)}, nil
}

// MustMoney parses a decimal string and panics on failure. Test helper.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromFloat converts a float through its shortest decimal
// representation and normalizes. Use only at input boundaries.
func MoneyFromFloat(f float64) Money {
	return Money{d: quantize(decimal.NewFromFloat(f))}
}

// MoneyFromDecimal normalizes an arbitrary decimal into Money.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d: quantize(d)}
}

// Zero returns 0.00.
func Zero() Money { return Money{} }

func (m Money) Add(o Money) Money { return Money{d: quantize(m.d.Add(o.d))} }
func (m Money) Sub(o Money) Money { return Money{d: quantize(m.d.Sub(o.d))} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }
func (m Money) Abs() Money        { return Money{d: m.d.Abs()} }

// Cmp returns -1, 0 or +1 comparing normalized values.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool    { return m.d.LessThan(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsPositive() bool         { return m.d.IsPositive() }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }

// ExceedsWithTolerance reports whether m is greater than limit by more
// than the settlement epsilon. Used by the overpayment guard.
func (m Money) ExceedsWithTolerance(limit Money) bool {
	return m.d.Sub(limit.d).GreaterThan(SettlementEpsilon)
}

// WithinEpsilonOfZero reports whether |m| <= 0.005, i.e. the value is
// settled for listing purposes.
func (m Money) WithinEpsilonOfZero() bool {
	return m.d.Abs().LessThanOrEqual(SettlementEpsilon)
}

// Decimal returns the underlying normalized decimal.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders the value with exactly 2 fraction digits, e.g. "-30.00".
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON / UnmarshalJSON keep Money as a quoted fixed-point string
// on the wire so clients never see binary floats.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
