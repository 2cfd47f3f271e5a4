package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementTotal counts create/void/refund outcomes.
	SettlementTotal *prometheus.CounterVec
	// SettlementDuration records settlement latency in milliseconds.
	SettlementDuration *prometheus.HistogramVec
	// CouponRejectionsTotal counts coupons skipped or refused, by reason.
	CouponRejectionsTotal *prometheus.CounterVec
	// StockMutationsTotal counts inventory ledger operations by op and result.
	StockMutationsTotal *prometheus.CounterVec
	// LoyaltyPointsTotal counts loyalty points moved, by direction.
	LoyaltyPointsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_total",
			Help:      "Count of settlement operations by outcome.",
		}, []string{"operation", "result"}))
		SettlementDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_ms",
			Help:      "Latency of settlement operations in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"operation"}))
		CouponRejectionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_rejections_total",
			Help:      "Count of coupons rejected at settlement by reason.",
		}, []string{"reason"}))
		StockMutationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_mutations_total",
			Help:      "Count of inventory ledger mutations by operation and result.",
		}, []string{"op", "result"}))
		LoyaltyPointsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_points_total",
			Help:      "Loyalty points earned, redeemed and reversed.",
		}, []string{"direction"}))
	})
}

// ObserveSettlement records one settlement operation. Safe before registration.
func ObserveSettlement(operation, result string, d time.Duration) {
	if SettlementTotal != nil {
		SettlementTotal.WithLabelValues(operation, result).Inc()
	}
	if SettlementDuration != nil {
		SettlementDuration.WithLabelValues(operation).Observe(DurationMillis(d))
	}
}

// CountCouponRejection records a rejected coupon.
func CountCouponRejection(reason string) {
	if CouponRejectionsTotal != nil {
		CouponRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

// CountStockMutation records an inventory ledger operation.
func CountStockMutation(op, result string) {
	if StockMutationsTotal != nil {
		StockMutationsTotal.WithLabelValues(op, result).Inc()
	}
}

// AddLoyaltyPoints records points moved in one direction.
func AddLoyaltyPoints(direction string, points int64) {
	if LoyaltyPointsTotal != nil && points > 0 {
		LoyaltyPointsTotal.WithLabelValues(direction).Add(float64(points))
	}
}
