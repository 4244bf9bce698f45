package configutil

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DecodeSettings fills out from a vendor settings block. Values are weakly
// typed so env-expanded strings like "3" or "30s" land in int and
// time.Duration fields; comma-separated strings become slices.
func DecodeSettings(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		MatchName:        sameKey,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("settings decoder: %w", err)
	}
	return dec.Decode(input)
}

func RequireString(value, path string) error {
	if blank(value) {
		return fmt.Errorf("%s is required", path)
	}
	return nil
}

func deref[T any](p *T, fallback T) T {
	if p != nil {
		return *p
	}
	return fallback
}

// BoolValue and IntValue read optional pointer settings so an explicit
// false or 0 survives decoding.
func BoolValue(value *bool, fallback bool) bool { return deref(value, fallback) }
func IntValue(value *int, fallback int) int { return deref(value, fallback) }

// StringValue treats whitespace as unset.
func StringValue(value, fallback string) string {
	if blank(value) {
		return fallback
	}
	return value
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// canonicalKey folds "API-Key", "api_key" and "apikey" together.
func canonicalKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return -1
		}
		return r
	}, strings.ToLower(key))
}

func sameKey(a, b string) bool { return canonicalKey(a) == canonicalKey(b) }
