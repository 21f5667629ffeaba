package ops_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/delivery/ops"
	"github.com/droszt-service/internal/delivery/ws"
	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/zone"
)

type noWatch struct{}

func (noWatch) Watch(ctx context.Context, _ string) (<-chan domain.QueueSnapshot, error) {
	ch := make(chan domain.QueueSnapshot)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func newServer(t *testing.T, checks map[string]ops.HealthCheck) *httptest.Server {
	t.Helper()
	reg, err := zone.Default()
	require.NoError(t, err)
	hub := ws.NewHub(noWatch{}, zap.NewNop())
	srv := httptest.NewServer(ops.NewServer(":0", hub, reg, checks, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Healthz(t *testing.T) {
	srv := newServer(t, map[string]ops.HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	status, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)
}

func TestServer_HealthzFailing(t *testing.T) {
	srv := newServer(t, map[string]ops.HealthCheck{
		"postgres": func(context.Context) error { return errors.New("down") },
	})
	status, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "postgres")
}

func TestServer_Metrics(t *testing.T) {
	srv := newServer(t, nil)
	_, _ = get(t, srv.URL+"/healthz")
	status, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(body, "droszt_http_requests_total"))
}

func TestServer_UnknownQueueFeed(t *testing.T) {
	srv := newServer(t, nil)
	status, _ := get(t, srv.URL+"/ws/queues/Nowhere")
	assert.Equal(t, http.StatusNotFound, status)
}
