package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"parcel/internal/domain/entity"
)

// ParseAmount validates a human readable, non-negative decimal amount.
func ParseAmount(amount string) (decimal.Decimal, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", entity.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", entity.ErrInvalidAmount, amount, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", entity.ErrInvalidAmount, amount)
	}
	return d, nil
}

// ToBaseUnits converts a decimal amount to integer base units, truncating
// digits beyond the token precision.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FormatBaseUnits converts base units back to a decimal string without trailing zeros.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBaseUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// SplitEvenly divides total into n parts. The remainder of the integer
// division goes to the first part so the parts always sum to total.
func SplitEvenly(total *big.Int, n int) ([]*big.Int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cannot split into %d parts", n)
	}
	if total == nil || total.Sign() < 0 {
		return nil, fmt.Errorf("%w: total must be non-negative", entity.ErrInvalidAmount)
	}
	share, rem := new(big.Int).QuoRem(total, big.NewInt(int64(n)), new(big.Int))
	parts := make([]*big.Int, n)
	for i := range parts {
		parts[i] = new(big.Int).Set(share)
	}
	parts[0].Add(parts[0], rem)
	return parts, nil
}

// PercentOf returns value * percent / 100.
func PercentOf(value *big.Int, percent uint64) *big.Int {
	out := new(big.Int).Mul(value, new(big.Int).SetUint64(percent))
	return out.Quo(out, big.NewInt(100))
}
