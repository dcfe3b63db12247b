package system

import (
	"fmt"

	"github.com/veesix-networks/aasbus/pkg/logger"
)

type LoggingConfig struct {
	Format     string            `json:"format,omitempty" yaml:"format,omitempty"`
	Level      string            `json:"level,omitempty" yaml:"level,omitempty"`
	Components map[string]string `json:"components,omitempty" yaml:"components,omitempty"`
}

func (c *LoggingConfig) Validate() error {
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Format)
	}
	if c.Level != "" && !logger.ValidLevel(c.Level) {
		return fmt.Errorf("logging.level: unknown level %q", c.Level)
	}
	for name, level := range c.Components {
		if !logger.ValidLevel(level) {
			return fmt.Errorf("logging.components.%s: unknown level %q", name, level)
		}
	}
	return nil
}
