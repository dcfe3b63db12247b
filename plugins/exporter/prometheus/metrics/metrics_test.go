package metrics

import (
	"context"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/aasbus/pkg/events"
)

type staticSource events.Stats

func (s staticSource) Stats() events.Stats { return events.Stats(s) }

type collector struct {
	src      StatsSource
	handlers []MetricHandler
}

func (c collector) Describe(ch chan<- *prometheus.Desc) {
	for _, h := range c.handlers {
		h.Describe(ch)
	}
}

func (c collector) Collect(ch chan<- prometheus.Metric) {
	for _, h := range c.handlers {
		h.Collect(context.Background(), c.src, ch)
	}
}

func gather(t *testing.T, src StatsSource) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector{src: src, handlers: DefaultRegistry().CreateHandlers(slog.Default())})

	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestParsePrometheusTag(t *testing.T) {
	tests := []struct {
		tag       string
		wantName  string
		wantType  prometheus.ValueType
		wantLabel bool
		wantErr   bool
	}{
		{tag: "label", wantLabel: true},
		{tag: "name=a_total,help=A,type=counter", wantName: "a_total", wantType: prometheus.CounterValue},
		{tag: "name=b,help=B,type=gauge", wantName: "b", wantType: prometheus.GaugeValue},
		{tag: "name=c,help=C,type=untyped", wantName: "c", wantType: prometheus.UntypedValue},
		{tag: "name=d,help=D,type=summary", wantErr: true},
		{tag: "name=e,type=gauge", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			name, _, typ, isLabel, err := ParsePrometheusTag(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantLabel, isLabel)
			if !isLabel {
				assert.Equal(t, tt.wantType, typ)
			}
		})
	}
}

func TestGetFieldValue(t *testing.T) {
	v := reflect.ValueOf(struct {
		On    bool
		Count uint64
		Delta int
		Ratio float64
		At    time.Time
		Name  string
	}{On: true, Count: 7, Delta: -2, Ratio: 0.5, At: time.Unix(100, 0)})

	tests := []struct {
		field string
		want  float64
	}{
		{"On", 1},
		{"Count", 7},
		{"Delta", -2},
		{"Ratio", 0.5},
		{"At", 100},
	}
	for _, tt := range tests {
		got, err := GetFieldValue(v, tt.field)
		require.NoError(t, err, tt.field)
		assert.Equal(t, tt.want, got, tt.field)
	}

	_, err := GetFieldValue(v, "Name")
	assert.Error(t, err)
	_, err = GetFieldValue(v, "Missing")
	assert.Error(t, err)
}

func TestGenerateMetricsForStats(t *testing.T) {
	fields, labels, err := GenerateMetrics(reflect.TypeOf(events.Stats{}))
	require.NoError(t, err)
	assert.Empty(t, labels)

	names := make(map[string]bool)
	for _, f := range fields {
		names[f.MetricName] = true
	}
	assert.True(t, names["aasbus_published_total"])
	assert.True(t, names["aasbus_running"])
	assert.False(t, names["kinds"])

	_, labels, err = GenerateMetrics(reflect.TypeOf(events.KindStats{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Kind"}, labels)
	assert.Equal(t, []string{"kind"}, LabelNames(labels))
}

func TestBusHandlers(t *testing.T) {
	families := gather(t, staticSource{
		Running:       true,
		Subscriptions: 3,
		Published:     42,
		Kinds: []events.KindStats{
			{Kind: "ChangeEventMessage", Subscriptions: 2},
			{Kind: "ErrorEventMessage", Subscriptions: 1},
		},
	})

	running := families["aasbus_running"]
	require.NotNil(t, running)
	assert.Equal(t, dto.MetricType_GAUGE, running.GetType())
	assert.Equal(t, 1.0, running.GetMetric()[0].GetGauge().GetValue())

	published := families["aasbus_published_total"]
	require.NotNil(t, published)
	assert.Equal(t, dto.MetricType_COUNTER, published.GetType())
	assert.Equal(t, 42.0, published.GetMetric()[0].GetCounter().GetValue())

	perKind := families["aasbus_kind_subscriptions"]
	require.NotNil(t, perKind)
	require.Len(t, perKind.GetMetric(), 2)
	got := make(map[string]float64)
	for _, m := range perKind.GetMetric() {
		require.Len(t, m.GetLabel(), 1)
		assert.Equal(t, "kind", m.GetLabel()[0].GetName())
		got[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"ChangeEventMessage": 2, "ErrorEventMessage": 1}, got)
}

func TestRegistryCreateHandlersSkipsFailures(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory("ok", func(logger *slog.Logger) (MetricHandler, error) {
		return NewStructHandler("ok", func(s events.Stats) []events.Stats { return nil }, logger)
	})
	reg.RegisterFactory("broken", func(logger *slog.Logger) (MetricHandler, error) {
		return NewStructHandler("broken", func(events.Stats) []struct {
			X int `prometheus:"name=x"`
		} {
			return nil
		}, logger)
	})

	handlers := reg.CreateHandlers(slog.Default())
	require.Len(t, handlers, 1)
	assert.Equal(t, "ok", handlers[0].Name())
}
