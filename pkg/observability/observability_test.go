package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.PendingPoolDepth.Set(3)
	m.BlocksSealed.Inc()
	m.ValidatorDecisions.WithLabelValues("VALID").Inc()
	m.EntriesRejected.WithLabelValues("pool").Inc()

	require.Equal(t, float64(3), testutil.ToFloat64(m.PendingPoolDepth))
	require.Equal(t, float64(1), testutil.ToFloat64(m.BlocksSealed))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ValidatorDecisions.WithLabelValues("VALID")))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 6)
}

func TestLoggerPrefixesByComponent(t *testing.T) {
	logger := Logger("miner")
	require.Contains(t, logger.Prefix(), "miner")
}
