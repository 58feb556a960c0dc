package coffee

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeSplitExamples(t *testing.T) {
	cases := []struct {
		units, price, pct uint64
		want              Split
	}{
		{3, 100, 10, Split{Total: 300, Fee: 30, CreatorAmount: 270}},
		{1, 1, 1, Split{Total: 1, Fee: 0, CreatorAmount: 1}},
		{1, 99, 1, Split{Total: 99, Fee: 0, CreatorAmount: 99}},
		{2, 50, 100, Split{Total: 100, Fee: 100, CreatorAmount: 0}},
		{7, 13, 0, Split{Total: 91, Fee: 0, CreatorAmount: 91}},
	}
	for _, tc := range cases {
		got, err := ComputeSplit(tc.units, tc.price, tc.pct)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestComputeSplitRejectsInvalidInput(t *testing.T) {
	_, err := ComputeSplit(0, 100, 10)
	require.ErrorIs(t, err, ErrInvalidUnits)
	_, err = ComputeSplit(1, 0, 10)
	require.ErrorIs(t, err, ErrInvalidUnitPrice)
	_, err = ComputeSplit(1, 1, 101)
	require.ErrorIs(t, err, ErrInvalidFeePercentage)
}

func TestComputeSplitOverflow(t *testing.T) {
	_, err := ComputeSplit(math.MaxUint64, 2, 10)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	// The total fits but total*pct does not.
	_, err = ComputeSplit(math.MaxUint64/2, 1, 10)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	// A zero fee never overflows the numerator.
	got, err := ComputeSplit(math.MaxUint64, 1, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), got.CreatorAmount)
}

func TestComputeSplitConservesTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		units := uint64(rng.Int63n(1_000_000)) + 1
		price := uint64(rng.Int63n(1_000_000)) + 1
		pct := uint64(rng.Int63n(101))

		got, err := ComputeSplit(units, price, pct)
		require.NoError(t, err)
		require.Equal(t, units*price, got.Total)
		require.Equal(t, got.Total, got.Fee+got.CreatorAmount)
		require.Equal(t, got.Total*pct/100, got.Fee)
		require.LessOrEqual(t, got.Fee, got.Total)
	}
}
