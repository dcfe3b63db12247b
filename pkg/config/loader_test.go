package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/aasbus/pkg/config/system"
)

const sampleConfig = `
logging:
  format: json
  level: debug
  components:
    bus: warn
messagebus:
  type: internal-forward
  queue_capacity: 1024
  overflow_policy: reject
  debug_kinds: [ErrorEventMessage]
  forward:
    topic_prefix: aas.events.
    kinds: [ChangeEventMessage, ErrorEventMessage]
broker:
  url: nats://broker:4222
  reconnect_wait: 500ms
  max_reconnects: 10
  tls:
    ca_file: /etc/aasbus/ca.pem
    cert_file: /etc/aasbus/client.pem
    key_file: /etc/aasbus/client-key.pem
journal:
  enabled: true
  path: /tmp/journal.db
api:
  enabled: true
  listen_address: 127.0.0.1:8081
  publish_rate: 50
exporter:
  enabled: true
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "warn", cfg.Logging.Components["bus"])

	assert.Equal(t, system.MessageBusInternalForward, cfg.MessageBus.Type)
	assert.Equal(t, 1024, cfg.MessageBus.QueueCapacity)
	assert.Equal(t, "reject", cfg.MessageBus.OverflowPolicy)
	assert.Equal(t, []string{"ErrorEventMessage"}, cfg.MessageBus.DebugKinds)
	assert.Equal(t, "aas.events.", cfg.MessageBus.Forward.TopicPrefix)
	assert.Equal(t, []string{"ChangeEventMessage", "ErrorEventMessage"}, cfg.MessageBus.Forward.Kinds)

	assert.Equal(t, "nats://broker:4222", cfg.Broker.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Broker.ReconnectWait)
	assert.Equal(t, 10, cfg.Broker.Reconnects())
	assert.Equal(t, system.BrokerTLSConfig{
		CAFile:   "/etc/aasbus/ca.pem",
		CertFile: "/etc/aasbus/client.pem",
		KeyFile:  "/etc/aasbus/client-key.pem",
	}, cfg.Broker.TLS)
	assert.True(t, cfg.Broker.TLS.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Broker.Timeout)
	assert.Equal(t, "aasbus", cfg.Broker.Name)

	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)

	assert.Equal(t, "127.0.0.1:8081", cfg.API.ListenAddress)
	assert.Equal(t, 50.0, cfg.API.PublishRate)
	assert.Equal(t, 50, cfg.API.PublishBurst)

	assert.True(t, cfg.Exporter.Enabled)
	assert.Equal(t, DefaultExporterAddress, cfg.Exporter.ListenAddress)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, system.MessageBusInternal, cfg.MessageBus.Type)
	assert.Zero(t, cfg.MessageBus.QueueCapacity)
	assert.Equal(t, "block", cfg.MessageBus.OverflowPolicy)
	assert.Equal(t, "events.", cfg.MessageBus.Forward.TopicPrefix)
	assert.Equal(t, DefaultBrokerURL, cfg.Broker.URL)
	assert.Equal(t, -1, cfg.Broker.Reconnects())
	assert.False(t, cfg.Broker.TLS.Enabled())
	assert.False(t, cfg.Journal.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown bus type",
			yaml:    "messagebus: {type: kafka}",
			wantErr: "messagebus.type",
		},
		{
			name:    "negative capacity",
			yaml:    "messagebus: {queue_capacity: -1}",
			wantErr: "messagebus.queue_capacity",
		},
		{
			name:    "unknown overflow policy",
			yaml:    "messagebus: {overflow_policy: drop}",
			wantErr: "messagebus.overflow_policy",
		},
		{
			name:    "unknown forward kind",
			yaml:    "messagebus: {type: internal-forward, forward: {kinds: [ChangeEventMessage, Bogus]}}",
			wantErr: `messagebus.forward.kinds[1]: unknown event kind: "Bogus"`,
		},
		{
			name:    "forward without kinds",
			yaml:    "messagebus: {type: internal-forward}",
			wantErr: "messagebus.forward.kinds: required",
		},
		{
			name:    "unknown debug kind",
			yaml:    "messagebus: {debug_kinds: [Nope]}",
			wantErr: "messagebus.debug_kinds[0]",
		},
		{
			name:    "bad log level",
			yaml:    "logging: {level: loud}",
			wantErr: "logging.level",
		},
		{
			name:    "bad component level",
			yaml:    "logging: {components: {bus: loud}}",
			wantErr: "logging.components.bus",
		},
		{
			name:    "bad log format",
			yaml:    "logging: {format: xml}",
			wantErr: "logging.format",
		},
		{
			name:    "max reconnects below -1",
			yaml:    "broker: {max_reconnects: -2}",
			wantErr: "broker.max_reconnects",
		},
		{
			name:    "tls cert without key",
			yaml:    "broker: {tls: {cert_file: /tmp/c.pem}}",
			wantErr: "broker.tls",
		},
		{
			name:    "negative publish rate",
			yaml:    "api: {publish_rate: -1}",
			wantErr: "api.publish_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestMaxReconnectsZeroDisablesReconnect(t *testing.T) {
	cfg, err := Parse([]byte("broker: {max_reconnects: 0}"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Broker.Reconnects())

	cfg, err = Parse([]byte("broker: {url: nats://b:4222}"))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Broker.Reconnects())
}

func TestBrokerTLSOnlyCA(t *testing.T) {
	cfg, err := Parse([]byte("broker: {tls: {ca_file: /etc/ssl/ca.pem}}"))
	require.NoError(t, err)
	assert.True(t, cfg.Broker.TLS.Enabled())
	assert.Equal(t, "/etc/ssl/ca.pem", cfg.Broker.TLS.CAFile)
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aasbus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	out := filepath.Join(dir, "saved.yaml")
	require.NoError(t, Save(out, cfg))

	again, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.MessageBus, again.MessageBus)
	assert.Equal(t, cfg.Broker.ReconnectWait, again.Broker.ReconnectWait)
	assert.Equal(t, cfg.Broker.Reconnects(), again.Broker.Reconnects())
	assert.Equal(t, cfg.Broker.TLS, again.Broker.TLS)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
