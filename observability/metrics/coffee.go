package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CoffeeMetrics struct {
	purchases       *prometheus.CounterVec
	volume          prometheus.Counter
	fees            prometheus.Counter
	creatorPayouts  prometheus.Counter
	rejected        *prometheus.CounterVec
	configMutations *prometheus.CounterVec
	transfers       prometheus.Counter
	discountsActive prometheus.Gauge
}

var (
	coffeeOnce     sync.Once
	coffeeRegistry *CoffeeMetrics
)

func Coffee() *CoffeeMetrics {
	coffeeOnce.Do(func() {
		coffeeRegistry = &CoffeeMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "coffee_purchases_total",
				Help: "Count of completed purchases by fee source.",
			}, []string{"fee_source"}),
			volume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "coffee_purchase_volume_total",
				Help: "Sum of purchase totals in base units.",
			}),
			fees: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "coffee_platform_fees_total",
				Help: "Sum of platform fees collected in base units.",
			}),
			creatorPayouts: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "coffee_creator_payouts_total",
				Help: "Sum of amounts paid to creators in base units.",
			}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "coffee_rejected_operations_total",
				Help: "Count of rejected operations by operation and error code.",
			}, []string{"operation", "code"}),
			configMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "coffee_config_mutations_total",
				Help: "Count of committed platform and discount configuration changes by kind.",
			}, []string{"kind"}),
			transfers: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "coffee_native_transfers_total",
				Help: "Count of committed native transfers.",
			}),
			discountsActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "coffee_discounts_active",
				Help: "Creator discounts added minus removed since process start.",
			}),
		}
		prometheus.MustRegister(
			coffeeRegistry.purchases,
			coffeeRegistry.volume,
			coffeeRegistry.fees,
			coffeeRegistry.creatorPayouts,
			coffeeRegistry.rejected,
			coffeeRegistry.configMutations,
			coffeeRegistry.transfers,
			coffeeRegistry.discountsActive,
		)
	})
	return coffeeRegistry
}

func label(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func (m *CoffeeMetrics) ObservePurchase(feeSource string, total, fee, creatorAmount uint64) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(label(feeSource, "unknown")).Inc()
	m.volume.Add(float64(total))
	m.fees.Add(float64(fee))
	m.creatorPayouts.Add(float64(creatorAmount))
}

func (m *CoffeeMetrics) ObserveRejected(operation, code string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(label(operation, "unknown"), label(code, "Internal")).Inc()
}

func (m *CoffeeMetrics) ObserveConfigMutation(kind string) {
	if m == nil {
		return
	}
	m.configMutations.WithLabelValues(label(kind, "unknown")).Inc()
}

func (m *CoffeeMetrics) ObserveTransfer() {
	if m == nil {
		return
	}
	m.transfers.Inc()
}

func (m *CoffeeMetrics) DiscountAdded() {
	if m == nil {
		return
	}
	m.discountsActive.Inc()
}

func (m *CoffeeMetrics) DiscountRemoved() {
	if m == nil {
		return
	}
	m.discountsActive.Dec()
}
