package config

import (
	"github.com/knadh/koanf/v2"
)

// ApplyDefaults sets the registered default of every key that has not been
// loaded from another source. It returns the keys it filled in.
//
// Defaults are applied lazily, after files and env vars, so that a default
// never shadows a value a user provided. Calling it again is harmless.
func ApplyDefaults(k *koanf.Koanf) []string {
	var applied []string
	for key, val := range Defaults() {
		if k.Exists(key) {
			continue
		}
		if err := k.Set(key, val); err == nil {
			applied = append(applied, key)
		}
	}
	return applied
}
