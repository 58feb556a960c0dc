package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCoffeeMetricsRecordPurchases(t *testing.T) {
	m := Coffee()
	require.Same(t, m, Coffee())

	beforePlatform := testutil.ToFloat64(m.purchases.WithLabelValues("platform"))
	beforeVolume := testutil.ToFloat64(m.volume)
	beforeFees := testutil.ToFloat64(m.fees)

	m.ObservePurchase("platform", 300, 30, 270)
	m.ObservePurchase("", 10, 1, 9)

	require.Equal(t, beforePlatform+1, testutil.ToFloat64(m.purchases.WithLabelValues("platform")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.purchases.WithLabelValues("unknown")))
	require.Equal(t, beforeVolume+310, testutil.ToFloat64(m.volume))
	require.Equal(t, beforeFees+31, testutil.ToFloat64(m.fees))
}

func TestCoffeeMetricsRejectedAndConfig(t *testing.T) {
	m := Coffee()
	m.ObserveRejected("coffee_updateFee", "Unauthorized")
	m.ObserveRejected("", "")
	m.ObserveConfigMutation("fee")
	m.DiscountAdded()
	m.DiscountAdded()
	m.DiscountRemoved()

	require.Equal(t, float64(1), testutil.ToFloat64(m.rejected.WithLabelValues("coffee_updateFee", "Unauthorized")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.rejected.WithLabelValues("unknown", "Internal")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.configMutations.WithLabelValues("fee")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.discountsActive))

	var nilMetrics *CoffeeMetrics
	require.NotPanics(t, func() { nilMetrics.ObservePurchase("platform", 1, 0, 1) })
}
