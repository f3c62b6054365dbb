package cache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestMetrics_LabelledByCacheName(t *testing.T) {
	c, err := NewRistrettoCache(&RistrettoConfig{
		Name:        "metrics-test",
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer c.Close()

	before := testutil.ToFloat64(CacheMissesTotal.WithLabelValues("metrics-test"))

	c.Get("absent")

	after := testutil.ToFloat64(CacheMissesTotal.WithLabelValues("metrics-test"))
	if after-before != 1 {
		t.Errorf("expected one miss recorded, got %v", after-before)
	}
}
