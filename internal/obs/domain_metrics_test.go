package obs_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/obs"
)

func TestDomainMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("pos", registry)

	obs.ObserveSettlement("create", "completed", 12*time.Millisecond)
	obs.CountCouponRejection("expired")
	obs.CountStockMutation("subtract", "ok")
	obs.AddLoyaltyPoints("earned", 15)
	obs.AddLoyaltyPoints("earned", 0)

	require.Equal(t, float64(1), testutil.ToFloat64(obs.SettlementTotal.WithLabelValues("create", "completed")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.CouponRejectionsTotal.WithLabelValues("expired")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.StockMutationsTotal.WithLabelValues("subtract", "ok")))
	require.Equal(t, float64(15), testutil.ToFloat64(obs.LoyaltyPointsTotal.WithLabelValues("earned")))
	require.Equal(t, 1, testutil.CollectAndCount(obs.SettlementDuration))
}
