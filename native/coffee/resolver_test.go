package coffee

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"cryptocoffee/native/bank"
)

func TestResolveFee(t *testing.T) {
	res, err := ResolveFee(20, NoOverride{})
	require.NoError(t, err)
	require.Equal(t, Resolution{FeePercentage: 20, Source: FeeSourcePlatform}, res)

	// Overrides win in both directions.
	res, err = ResolveFee(20, Override{Discount: CreatorDiscount{FeePercentage: 5}})
	require.NoError(t, err)
	require.Equal(t, Resolution{FeePercentage: 5, Source: FeeSourceCreator}, res)

	res, err = ResolveFee(5, Override{Discount: CreatorDiscount{FeePercentage: 50}})
	require.NoError(t, err)
	require.Equal(t, uint64(50), res.FeePercentage)

	res, err = ResolveFee(5, Override{Discount: CreatorDiscount{FeePercentage: 0}})
	require.NoError(t, err)
	require.Equal(t, uint64(0), res.FeePercentage)
	require.Equal(t, FeeSourceCreator, res.Source)
}

func TestResolveFeeRejectsMalformedInput(t *testing.T) {
	_, err := ResolveFee(101, NoOverride{})
	require.ErrorIs(t, err, ErrInvalidFeePercentage)

	_, err = ResolveFee(10, Override{Discount: CreatorDiscount{FeePercentage: 101}})
	require.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = ResolveFee(10, nil)
	require.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestErrorCode(t *testing.T) {
	require.Equal(t, "", ErrorCode(nil))
	require.Equal(t, "Unauthorized", ErrorCode(ErrUnauthorized))
	require.Equal(t, "InvalidUnits", ErrorCode(fmt.Errorf("wrapped: %w", ErrInvalidUnits)))
	require.Equal(t, "DiscountAlreadyExists", ErrorCode(ErrDiscountExists))
	require.Equal(t, "TransferFailed", ErrorCode(fmt.Errorf("transfer platform fee: %w", fmt.Errorf("%w: %w", bank.ErrTransferFailed, bank.ErrInsufficientBalance))))
	require.Equal(t, "", ErrorCode(fmt.Errorf("disk on fire")))
}
