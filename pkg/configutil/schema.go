package configutil

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Schema lists the keys a vendor settings block accepts.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

func (s Schema) allows(key string) bool {
	if s.AllowUnknown {
		return true
	}
	match := func(k string) bool { return sameKey(k, key) }
	return slices.ContainsFunc(s.Required, match) || slices.ContainsFunc(s.Optional, match)
}

// ValidateSettings reports required keys that are absent or blank and keys
// the schema does not know. Both lists are sorted.
func ValidateSettings(input map[string]any, schema Schema) error {
	present := make(map[string]any, len(input))
	var unknown []string
	for k, v := range input {
		present[canonicalKey(k)] = v
		if !schema.allows(k) {
			unknown = append(unknown, k)
		}
	}
	var missing []string
	for _, k := range schema.Required {
		if v, ok := present[canonicalKey(k)]; !ok || emptySetting(v) {
			missing = append(missing, k)
		}
	}

	var problems []string
	if len(missing) > 0 {
		slices.Sort(missing)
		problems = append(problems, "missing: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		problems = append(problems, "unknown: "+strings.Join(unknown, ", "))
	}
	if problems == nil {
		return nil
	}
	return errors.New(strings.Join(problems, "; "))
}

// Load validates and decodes a settings block. Errors are prefixed with path
// so the operator can find the offending YAML key.
func Load(path string, input map[string]any, schema Schema, out any) error {
	err := ValidateSettings(input, schema)
	if err == nil {
		err = DecodeSettings(input, out)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func emptySetting(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return blank(x)
	default:
		return false
	}
}
