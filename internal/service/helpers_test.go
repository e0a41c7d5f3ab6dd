package service

import (
	"io"
	"testing"

	"civic-document-service/internal/adapter/metrics"
	"civic-document-service/internal/adapter/storage/file"
	"civic-document-service/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestMetrics() *metrics.Collector {
	return metrics.New(prometheus.NewRegistry())
}

func newMemKV(t *testing.T) ports.KVStore {
	t.Helper()
	kv, err := file.NewKVStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	return kv
}
