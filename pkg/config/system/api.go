package system

type APIConfig struct {
	Enabled       bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ListenAddress string `json:"listen_address,omitempty" yaml:"listen_address,omitempty"`
	// PublishRate limits POST /api/events per second; 0 disables limiting.
	PublishRate  float64 `json:"publish_rate,omitempty" yaml:"publish_rate,omitempty"`
	PublishBurst int     `json:"publish_burst,omitempty" yaml:"publish_burst,omitempty"`
}

type ExporterConfig struct {
	Enabled       bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ListenAddress string `json:"listen_address,omitempty" yaml:"listen_address,omitempty"`
}
