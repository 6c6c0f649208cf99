package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// KeyInfo describes a known configuration key.
type KeyInfo struct {
	Key         string      // Full key path, e.g. "drivers.home"
	Description string      // Human readable description
	Type        string      // Type hint: "string", "int", "bool", "duration", "[]string"
	Default     interface{} // Optional default value
	Deprecated  bool        // The key is no longer read
	ReplacedBy  string      // Replacement for a deprecated key
}

var (
	registry   = make(map[string]KeyInfo)
	registryMu sync.RWMutex
)

// Register adds keys to the registry, replacing any previous entry.
func Register(infos ...KeyInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, info := range infos {
		registry[info.Key] = info
	}
}

// RegisterDeprecated records that oldKey has been replaced by newKey.
func RegisterDeprecated(oldKey, newKey string) {
	Register(KeyInfo{Key: oldKey, Deprecated: true, ReplacedBy: newKey})
}

// Lookup returns the registered metadata for key.
func Lookup(key string) (KeyInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[key]
	return info, ok
}

// Keys returns every registered key, sorted.
func Keys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Defaults returns the keys that declare a default value.
func Defaults() map[string]interface{} {
	registryMu.RLock()
	defer registryMu.RUnlock()
	defaults := make(map[string]interface{})
	for key, info := range registry {
		if info.Default != nil && !info.Deprecated {
			defaults[key] = info.Default
		}
	}
	return defaults
}

// Suggest returns up to max registered keys close to key, most similar first.
// Keys within an edit distance of 3 qualify, with keys sharing the same
// parent namespace scored one closer.
func Suggest(key string, max int) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	type scored struct {
		key   string
		score int
	}
	var candidates []scored
	prefix := parentKey(key)
	for registered := range registry {
		if registered == key {
			continue
		}
		score := similarity(key, registered, prefix)
		if score <= 3 {
			candidates = append(candidates, scored{registered, score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].key < candidates[j].key
		}
		return candidates[i].score < candidates[j].score
	})

	out := make([]string, 0, max)
	for i := 0; i < len(candidates) && i < max; i++ {
		out = append(out, candidates[i].key)
	}
	return out
}

func similarity(key, registered, keyPrefix string) int {
	distance := levenshtein.ComputeDistance(key, registered)
	if keyPrefix != "" && keyPrefix == parentKey(registered) && distance > 0 {
		distance--
	}
	return distance
}

// parentKey returns "drivers.download" for "drivers.download.retries".
func parentKey(key string) string {
	i := strings.LastIndex(key, ".")
	if i == -1 {
		return ""
	}
	return key[:i]
}

// hasRegisteredParent reports whether any ancestor of key is registered,
// which lets callers register a namespace instead of every leaf.
func hasRegisteredParent(key string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for p := parentKey(key); p != ""; p = parentKey(p) {
		if _, ok := registry[p]; ok {
			return true
		}
	}
	return false
}
