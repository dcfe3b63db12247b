package system

import "time"

// BrokerConfig describes the NATS connection used by the forwarding and
// external bus types. A URL with the memory:// scheme selects the in-process
// broker.
type BrokerConfig struct {
	URL           string        `json:"url,omitempty" yaml:"url,omitempty"`
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	Username      string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password      string        `json:"-" yaml:"password,omitempty"`
	Token         string        `json:"-" yaml:"token,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
	// MaxReconnects limits reconnect attempts; -1 retries forever and 0
	// disables reconnecting. Unset means -1.
	MaxReconnects *int            `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	Timeout       time.Duration   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	TLS           BrokerTLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// Reconnects returns MaxReconnects, or -1 when unset.
func (c BrokerConfig) Reconnects() int {
	if c.MaxReconnects == nil {
		return -1
	}
	return *c.MaxReconnects
}

// BrokerTLSConfig holds PEM files for a TLS broker connection. Setting any
// of them enables TLS; cert_file and key_file go together.
type BrokerTLSConfig struct {
	CAFile   string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

func (c BrokerTLSConfig) Enabled() bool {
	return c.CAFile != "" || c.CertFile != "" || c.KeyFile != ""
}
