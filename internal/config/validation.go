package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"
)

// Warning flags a loaded key that is unknown or deprecated.
type Warning struct {
	Key         string
	Suggestions []string
}

func (w Warning) String() string {
	msg := fmt.Sprintf("'%s' is not a known config key", w.Key)
	switch len(w.Suggestions) {
	case 0:
	case 1:
		msg += fmt.Sprintf(". Did you mean '%s'?", w.Suggestions[0])
	default:
		msg += ". Did you mean one of these?\n"
		for _, s := range w.Suggestions {
			msg += fmt.Sprintf("    - %s\n", s)
		}
	}
	return msg
}

// Validate checks every loaded key against the registry.
func Validate(k *koanf.Koanf) []Warning {
	var warnings []Warning
	for _, key := range k.Keys() {
		if info, ok := Lookup(key); ok {
			if info.Deprecated {
				warnings = append(warnings, Warning{Key: key, Suggestions: []string{info.ReplacedBy}})
			}
			continue
		}
		if hasRegisteredParent(key) {
			continue
		}
		warnings = append(warnings, Warning{Key: key, Suggestions: Suggest(key, 3)})
	}
	return warnings
}

// FormatWarnings renders warnings as a single multi-line message.
func FormatWarnings(warnings []Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Configuration warnings detected:\n")
	for _, w := range warnings {
		for i, line := range strings.Split(w.String(), "\n") {
			if line == "" {
				continue
			}
			if i == 0 {
				sb.WriteString("  - " + line + "\n")
			} else {
				sb.WriteString("    " + line + "\n")
			}
		}
	}
	return sb.String()
}
