package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatJSON, FormatYAML:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

func Format(data interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		encoder := json.NewEncoder(&buf)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(data); err != nil {
			return "", err
		}
		return buf.String(), nil
	case FormatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}
