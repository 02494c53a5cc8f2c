package metrics_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/casevault/internal/metrics"
)

func TestNewRegistry(t *testing.T) {
	r := metrics.NewRegistry("")
	require.NotNil(t, r)

	assert.NotNil(t, r.SessionOperationsTotal)
	assert.NotNil(t, r.SessionOperationDuration)
	assert.NotNil(t, r.BlobSizeBytes)
	assert.NotNil(t, r.UnlockFailuresTotal)
	assert.NotNil(t, r.SaltInitializationsTotal)
}

func TestRecordOperation(t *testing.T) {
	r := metrics.NewRegistry("casevault")

	r.RecordOperation("core", "open", nil, 10*time.Millisecond)
	r.RecordOperation("core", "open", nil, 20*time.Millisecond)
	r.RecordOperation("core", "open", errors.New("boom"), 5*time.Millisecond)
	r.RecordOperation("vault", "persist", nil, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.SessionOperationsTotal.WithLabelValues("core", "open", metrics.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SessionOperationsTotal.WithLabelValues("core", "open", metrics.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SessionOperationsTotal.WithLabelValues("vault", "persist", metrics.StatusSuccess)))
	assert.Equal(t, 2, testutil.CollectAndCount(r.SessionOperationDuration))
}

func TestBlobSizeAndFailures(t *testing.T) {
	r := metrics.NewRegistry("casevault")

	r.SetBlobSize("vault", 4096)
	r.SetBlobSize("vault", 8192)
	r.RecordUnlockFailure("core", "auth")
	r.RecordSalt(true)
	r.RecordSalt(false)
	r.RecordSalt(false)

	assert.Equal(t, 8192.0, testutil.ToFloat64(r.BlobSizeBytes.WithLabelValues("vault")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.UnlockFailuresTotal.WithLabelValues("core", "auth")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.SaltInitializationsTotal.WithLabelValues("existing")))
}

func TestExpositionNames(t *testing.T) {
	r := metrics.NewRegistry("casevault")
	r.SetBlobSize("core", 100)

	expected := `
# HELP casevault_blob_size_bytes Size of the last encrypted blob written or read
# TYPE casevault_blob_size_bytes gauge
casevault_blob_size_bytes{store="core"} 100
`
	err := testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected), "casevault_blob_size_bytes")
	assert.NoError(t, err)
}

func TestNilRegistry(t *testing.T) {
	var r *metrics.Registry

	assert.NotPanics(t, func() {
		r.RecordOperation("core", "open", nil, time.Second)
		r.SetBlobSize("core", 1)
		r.RecordUnlockFailure("core", "auth")
		r.RecordSalt(true)
	})

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}
