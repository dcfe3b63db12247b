package config

import (
	"fmt"
	"os"
	"time"

	"github.com/veesix-networks/aasbus/pkg/config/system"
	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/local"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBrokerURL       = "nats://127.0.0.1:4222"
	DefaultJournalPath     = "/var/lib/aasbus/journal.db"
	DefaultAPIAddress      = ":8080"
	DefaultExporterAddress = ":9090"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.MessageBus.Type == "" {
		c.MessageBus.Type = system.MessageBusInternal
	}
	if c.MessageBus.OverflowPolicy == "" {
		c.MessageBus.OverflowPolicy = local.OverflowBlock.String()
	}
	if c.MessageBus.Forward.TopicPrefix == "" {
		c.MessageBus.Forward.TopicPrefix = "events."
	}

	if c.Broker.URL == "" {
		c.Broker.URL = DefaultBrokerURL
	}
	if c.Broker.Name == "" {
		c.Broker.Name = "aasbus"
	}
	if c.Broker.ReconnectWait == 0 {
		c.Broker.ReconnectWait = 2 * time.Second
	}
	if c.Broker.MaxReconnects == nil {
		unlimited := -1
		c.Broker.MaxReconnects = &unlimited
	}
	if c.Broker.Timeout == 0 {
		c.Broker.Timeout = 5 * time.Second
	}

	if c.Journal.Path == "" {
		c.Journal.Path = DefaultJournalPath
	}
	if c.API.ListenAddress == "" {
		c.API.ListenAddress = DefaultAPIAddress
	}
	if c.API.PublishRate > 0 && c.API.PublishBurst == 0 {
		c.API.PublishBurst = int(c.API.PublishRate)
		if c.API.PublishBurst < 1 {
			c.API.PublishBurst = 1
		}
	}
	if c.Exporter.ListenAddress == "" {
		c.Exporter.ListenAddress = DefaultExporterAddress
	}
}

func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}

	mb := c.MessageBus
	switch mb.Type {
	case system.MessageBusInternal, system.MessageBusInternalForward, system.MessageBusExternal:
	default:
		return fmt.Errorf("messagebus.type: unknown bus type %q", mb.Type)
	}
	if mb.QueueCapacity < 0 {
		return fmt.Errorf("messagebus.queue_capacity: must not be negative, got %d", mb.QueueCapacity)
	}
	if _, ok := local.ParseOverflowPolicy(mb.OverflowPolicy); !ok {
		return fmt.Errorf("messagebus.overflow_policy: unknown policy %q", mb.OverflowPolicy)
	}
	for i, name := range mb.DebugKinds {
		if _, err := events.ParseKind(name); err != nil {
			return fmt.Errorf("messagebus.debug_kinds[%d]: %w", i, err)
		}
	}
	for i, name := range mb.Forward.Kinds {
		if _, err := events.ParseKind(name); err != nil {
			return fmt.Errorf("messagebus.forward.kinds[%d]: %w", i, err)
		}
	}
	if mb.Type == system.MessageBusInternalForward && len(mb.Forward.Kinds) == 0 {
		return fmt.Errorf("messagebus.forward.kinds: required for bus type %q", mb.Type)
	}

	if c.Broker.Timeout < 0 {
		return fmt.Errorf("broker.timeout: must not be negative")
	}
	if n := c.Broker.Reconnects(); n < -1 {
		return fmt.Errorf("broker.max_reconnects: must be -1 or more, got %d", n)
	}
	if tls := c.Broker.TLS; (tls.CertFile == "") != (tls.KeyFile == "") {
		return fmt.Errorf("broker.tls: cert_file and key_file must be set together")
	}
	if c.API.PublishRate < 0 {
		return fmt.Errorf("api.publish_rate: must not be negative")
	}

	return nil
}
