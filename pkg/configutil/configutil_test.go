package configutil

import (
	"strings"
	"testing"
	"time"
)

type sample struct {
	APIKey   string        `mapstructure:"api_key"`
	Retries  *int          `mapstructure:"retries"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Smart    *bool         `mapstructure:"smart_format"`
}

func TestValidateSettings(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}, Optional: []string{"retries"}}
	if err := ValidateSettings(map[string]any{"API-Key": "x", "retries": 2}, schema); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateSettings(map[string]any{"api_key": "  ", "colour": "red"}, schema)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "missing: api_key") || !strings.Contains(err.Error(), "unknown: colour") {
		t.Fatalf("unexpected error %q", err)
	}
}

func TestLoadDecodesWeakTypes(t *testing.T) {
	var out sample
	err := Load("vendors.llm.settings", map[string]any{
		"api_key":      "k",
		"retries":      "3",
		"cooldown":     "1500ms",
		"smart_format": "false",
	}, Schema{Required: []string{"api_key"}, AllowUnknown: true}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.APIKey != "k" || IntValue(out.Retries, 0) != 3 {
		t.Fatalf("unexpected decode %+v", out)
	}
	if out.Cooldown != 1500*time.Millisecond {
		t.Fatalf("unexpected cooldown %v", out.Cooldown)
	}
	if BoolValue(out.Smart, true) {
		t.Fatalf("expected smart_format false")
	}
}

func TestLoadPrefixesPath(t *testing.T) {
	var out sample
	err := Load("vendors.stt.settings", map[string]any{}, Schema{Required: []string{"api_key"}}, &out)
	if err == nil || !strings.HasPrefix(err.Error(), "vendors.stt.settings: ") {
		t.Fatalf("expected prefixed error, got %v", err)
	}
}
