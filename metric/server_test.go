package metric

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/c360studio/taxorank/cost"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.OracleCall("criteria", "ok", time.Second, cost.FromTokens(10, 5, 0))

	srv := NewServer("127.0.0.1:0", reg, nil)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	base := "http://" + srv.Addr()

	code, body := get(t, base+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)

	code, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "taxorank_oracle_calls_total")
	assert.Contains(t, body, `kind="criteria"`)
}

func TestServer_Lifecycle(t *testing.T) {
	srv := NewServer("127.0.0.1:0", prometheus.NewRegistry(), nil)
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
	assert.NoError(t, srv.Shutdown(context.Background()), "shutdown before start is a no-op")

	require.NoError(t, srv.Start())
	assert.Error(t, srv.Start(), "second start must fail")
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr())

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServer_NoGatherer(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil, nil)
	assert.Error(t, srv.Start())
}
