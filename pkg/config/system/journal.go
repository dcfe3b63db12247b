package system

type JournalConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}
