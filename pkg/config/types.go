package config

import "github.com/veesix-networks/aasbus/pkg/config/system"

type Config struct {
	Logging    system.LoggingConfig    `json:"logging,omitempty" yaml:"logging,omitempty"`
	MessageBus system.MessageBusConfig `json:"messagebus,omitempty" yaml:"messagebus,omitempty"`
	Broker     system.BrokerConfig     `json:"broker,omitempty" yaml:"broker,omitempty"`
	Journal    system.JournalConfig    `json:"journal,omitempty" yaml:"journal,omitempty"`
	API        system.APIConfig        `json:"api,omitempty" yaml:"api,omitempty"`
	Exporter   system.ExporterConfig   `json:"exporter,omitempty" yaml:"exporter,omitempty"`
}
