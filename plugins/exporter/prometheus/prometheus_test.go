package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/aasbus/pkg/component"
	"github.com/veesix-networks/aasbus/pkg/config"
	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/local"
	"github.com/veesix-networks/aasbus/plugins/exporter/prometheus/metrics"
)

func TestNewDisabled(t *testing.T) {
	comp, err := New(component.Dependencies{Config: config.Default()})
	require.NoError(t, err)
	assert.Nil(t, comp)
}

func TestNewRequiresBus(t *testing.T) {
	cfg := config.Default()
	cfg.Exporter.Enabled = true

	_, err := New(component.Dependencies{Config: cfg})
	assert.Error(t, err)
}

func TestHandlerExposesBusStats(t *testing.T) {
	bus := local.New()
	require.NoError(t, bus.Start())
	t.Cleanup(func() { bus.Stop() })

	_, err := bus.Subscribe(events.NewSubscription(events.KindChange, func(*events.Message) error { return nil }))
	require.NoError(t, err)

	c := NewWithRegistry(bus, "127.0.0.1:0", metrics.DefaultRegistry())
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "aasbus_running 1")
	assert.Contains(t, body, "aasbus_subscriptions 1")
	assert.Contains(t, body, `aasbus_kind_subscriptions{kind="ChangeEventMessage"} 1`)
}

func TestStartServesMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Exporter.Enabled = true
	cfg.Exporter.ListenAddress = "127.0.0.1:0"

	bus := local.New()
	comp, err := New(component.Dependencies{EventBus: bus, Config: cfg})
	require.NoError(t, err)
	require.NotNil(t, comp)

	c := comp.(*Component)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	resp, err := http.Get("http://" + c.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "aasbus_running 0"))
}
