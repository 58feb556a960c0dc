package coffee

import (
	"github.com/holiman/uint256"
)

var percentDenominator = uint256.NewInt(100)

// Split is the division of a purchase total between the platform and the
// creator. Fee + CreatorAmount == Total always holds.
type Split struct {
	Total         uint64 `json:"total"`
	Fee           uint64 `json:"fee"`
	CreatorAmount uint64 `json:"creatorAmount"`
}

// ComputeSplit multiplies units by unitPrice and takes feePercentage of the
// result, rounding the fee down. Every intermediate must fit in 64 bits.
func ComputeSplit(units, unitPrice, feePercentage uint64) (Split, error) {
	if units == 0 {
		return Split{}, ErrInvalidUnits
	}
	if unitPrice == 0 {
		return Split{}, ErrInvalidUnitPrice
	}
	if feePercentage > MaxFeePercentage {
		return Split{}, ErrInvalidFeePercentage
	}
	total, err := checkedMul(units, unitPrice)
	if err != nil {
		return Split{}, err
	}
	numerator, err := checkedMul(total, feePercentage)
	if err != nil {
		return Split{}, err
	}
	fee := new(uint256.Int).Div(uint256.NewInt(numerator), percentDenominator).Uint64()
	return Split{Total: total, Fee: fee, CreatorAmount: total - fee}, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return product.Uint64(), nil
}
