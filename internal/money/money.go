// Package money implements the exact fixed-point decimal type used for
// every price, stake, fee, and profit-and-loss figure in the system.
// Floating point never represents money; it appears only in statistics
// kernels and raw exchange prices, both dimensionless or trivially
// convertible at the boundary.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the fractional precision money is rounded to. Ten digits covers
// Polymarket's finest tick size (0.0001) with ample headroom for derived
// quantities like per-share profit.
const Scale = 10

// Money is an exact fixed-point decimal value. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// New builds a Money from a float64. Only use this at a trust boundary
// where the source value is already decimal-safe (e.g. a config literal);
// never round-trip computed money through float64.
func New(f float64) Money {
	return Money{d: decimal.NewFromFloat(f).Round(Scale)}
}

// NewFromString parses a decimal string exactly, with no float round-trip.
func NewFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Money{d: d.Round(Scale)}, nil
}

// NewFromDecimal wraps an existing decimal.Decimal.
func NewFromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// Decimal exposes the underlying decimal.Decimal for interop with decimal-
// aware code (e.g. the order book's price ladder).
func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d).Round(Scale)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d).Round(Scale)} }
func (m Money) Mul(o Money) Money { return Money{d: m.d.Mul(o.d).Round(Scale)} }

// MulFloat multiplies by a dimensionless float64 factor (e.g. a fee rate
// or a statistical weight), rounding the result back to Scale.
func (m Money) MulFloat(f float64) Money {
	return Money{d: m.d.Mul(decimal.NewFromFloat(f)).Round(Scale)}
}

// Div divides by another Money, returning an error on division by zero
// instead of panicking (shopspring/decimal panics on zero divisor).
func (m Money) Div(o Money) (Money, error) {
	if o.d.IsZero() {
		return Money{}, fmt.Errorf("money: division by zero")
	}
	return Money{d: m.d.DivRound(o.d, Scale)}, nil
}

func (m Money) Neg() Money          { return Money{d: m.d.Neg()} }
func (m Money) IsZero() bool        { return m.d.IsZero() }
func (m Money) IsNegative() bool    { return m.d.IsNegative() }
func (m Money) IsPositive() bool    { return m.d.IsPositive() }
func (m Money) Equal(o Money) bool  { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool      { return m.d.GreaterThan(o.d) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }
func (m Money) LessThan(o Money) bool         { return m.d.LessThan(o.d) }
func (m Money) LessThanOrEqual(o Money) bool  { return m.d.LessThanOrEqual(o.d) }

// Float64 converts to float64 for display or for feeding a statistics
// kernel that operates on dimensionless ratios derived from money.
func (m Money) Float64() float64 { return m.d.InexactFloat64() }

func (m Money) String() string { return m.d.StringFixed(Scale) }

// MarshalJSON/UnmarshalJSON preserve exact decimal representation across
// the wire, matching how the persisted record types round-trip (§8).
func (m Money) MarshalJSON() ([]byte, error) { return m.d.MarshalJSON() }

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	m.d = d.Round(Scale)
	return nil
}

// Value implements driver.Valuer for direct use with the sqlite repository.
func (m Money) Value() (driver.Value, error) { return m.d.String(), nil }

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		m.d = d
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		m.d = d
		return nil
	case float64:
		m.d = decimal.NewFromFloat(v)
		return nil
	default:
		return fmt.Errorf("money: unsupported scan source %T", src)
	}
}

// Max returns the greater of a and b.
func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the lesser of a and b.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Sum adds a slice of Money values.
func Sum(vs []Money) Money {
	total := Zero
	for _, v := range vs {
		total = total.Add(v)
	}
	return total
}
