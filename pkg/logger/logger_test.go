package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, format string, level LogLevel, components map[string]LogLevel) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Configure(format, level, components)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		Configure("text", LogLevelInfo, nil)
	})
	return &buf
}

func TestTextHandlerFormat(t *testing.T) {
	buf := capture(t, "text", LogLevelInfo, nil)

	Get(Bus).Info("Message bus started", "queue_capacity", 0, "overflow_policy", "block")

	line := buf.String()
	for _, want := range []string{"[bus]", "INFO", "Message bus started", "queue_capacity=0", "overflow_policy=block"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
	if strings.Index(line, "queue_capacity") > strings.Index(line, "overflow_policy") {
		t.Errorf("attribute order not preserved: %q", line)
	}
}

func TestComponentLevels(t *testing.T) {
	buf := capture(t, "text", LogLevelWarn, map[string]LogLevel{Bus: LogLevelDebug})

	Get(Bus).Debug("bus debug")
	Get(Bus + ".dispatch").Debug("nested debug")
	Get(Journal).Info("journal info")
	Get(Journal).Warn("journal warn")

	out := buf.String()
	tests := []struct {
		msg  string
		want bool
	}{
		{"bus debug", true},
		{"nested debug", true},
		{"journal info", false},
		{"journal warn", true},
	}
	for _, tt := range tests {
		if got := strings.Contains(out, tt.msg); got != tt.want {
			t.Errorf("output contains %q = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestSetAndClearComponentLevel(t *testing.T) {
	capture(t, "text", LogLevelInfo, nil)

	SetComponentLevel(Gateway, LogLevelError)
	if got := GetComponentLevels()[Gateway]; got != LogLevelError {
		t.Errorf("level = %q, want error", got)
	}
	if got := Components(); len(got) != 1 || got[0] != Gateway {
		t.Errorf("Components() = %v", got)
	}

	ClearComponentLevel(Gateway)
	if _, ok := GetComponentLevels()[Gateway]; ok {
		t.Error("level still set after clear")
	}
	if got := GetDefaultLevel(); got != LogLevelInfo {
		t.Errorf("default level = %q, want info", got)
	}
}

func TestJSONHandler(t *testing.T) {
	buf := capture(t, "json", LogLevelInfo, nil)

	Get(Forward).Warn("Forwarding failed", "subject", "events.ErrorEventMessage")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec["component"] != Forward {
		t.Errorf("component = %v, want %s", rec["component"], Forward)
	}
	if rec["level"] != slog.LevelWarn.String() {
		t.Errorf("level = %v", rec["level"])
	}
	if rec["subject"] != "events.ErrorEventMessage" {
		t.Errorf("subject = %v", rec["subject"])
	}
}

func TestWithMessageSkipsEmpty(t *testing.T) {
	buf := capture(t, "text", LogLevelInfo, nil)

	WithMessage(Get(Bus), MessageAttrs{MessageID: "m-1", Kind: "ErrorEventMessage"}).Error("Subscriber failed")

	line := buf.String()
	if !strings.Contains(line, "message_id=m-1") || !strings.Contains(line, "kind=ErrorEventMessage") {
		t.Errorf("missing message attributes: %q", line)
	}
	if strings.Contains(line, "element=") || strings.Contains(line, "subscription_id=") {
		t.Errorf("empty attributes logged: %q", line)
	}
}

func TestValidLevel(t *testing.T) {
	for _, l := range []string{"", "debug", "INFO", "warn", "warning", "error"} {
		if !ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = false", l)
		}
	}
	if ValidLevel("trace") {
		t.Error(`ValidLevel("trace") = true`)
	}
}
