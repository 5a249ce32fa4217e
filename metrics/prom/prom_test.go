package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, "stepwise")
	require.NoError(t, err)

	c.RecordStep("step1-local", 2*time.Millisecond, nil)
	c.RecordStep("step1-local", time.Millisecond, nil)
	c.RecordStep("step2-master", time.Millisecond, errors.New("boom"))
	c.RecordAllocation(4096)
	c.RecordAllocation(-1)
	c.RecordTransfer(512, time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.steps.WithLabelValues("step1-local", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.steps.WithLabelValues("step2-master", "error")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(c.allocated))
	assert.Equal(t, 512.0, testutil.ToFloat64(c.transferBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transfers.WithLabelValues("ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.stepLatency))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "stepwise")
	require.NoError(t, err)
	_, err = New(reg, "stepwise")
	assert.Error(t, err)
}
