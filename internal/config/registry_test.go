package config

import (
	"testing"

	"github.com/agnivade/levenshtein"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withRegistry swaps in a scratch registry for the duration of a test.
func withRegistry(t *testing.T, infos ...KeyInfo) {
	t.Helper()
	registryMu.Lock()
	original := registry
	registry = make(map[string]KeyInfo)
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		registry = original
		registryMu.Unlock()
	})
	Register(infos...)
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1, s2   string
		expected int
	}{
		{"", "", 0},
		{"drivers.home", "drivers.home", 0},
		{"drivers.hom", "drivers.home", 1},
		{"globalLibaries", "globalLibraries", 1},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, levenshtein.ComputeDistance(tt.s1, tt.s2), "%q vs %q", tt.s1, tt.s2)
	}
}

func TestSuggest(t *testing.T) {
	withRegistry(t,
		KeyInfo{Key: "drivers.globalLibraries"},
		KeyInfo{Key: "drivers.sources"},
		KeyInfo{Key: "drivers.download.retries"},
		KeyInfo{Key: "drivers.download.backoff"},
		KeyInfo{Key: "settings.dsn"},
	)

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"typo in globalLibraries", "drivers.globalLibaries", "drivers.globalLibraries"},
		{"typo in retries", "drivers.download.retires", "drivers.download.retries"},
		{"missing letter", "drivers.source", "drivers.sources"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, Suggest(tt.key, 3), tt.want)
		})
	}

	assert.Empty(t, Suggest("settings.dsn", 3), "exact match is not its own suggestion")
	assert.Empty(t, Suggest("completely.unrelated.thing", 3))
}

func TestRegisterAndLookup(t *testing.T) {
	withRegistry(t)

	Register(KeyInfo{Key: "test.key", Description: "Test key", Type: "string"})

	info, ok := Lookup("test.key")
	require.True(t, ok)
	assert.Equal(t, "Test key", info.Description)

	_, ok = Lookup("test.other")
	assert.False(t, ok)
}

func TestKeysSorted(t *testing.T) {
	withRegistry(t, KeyInfo{Key: "b"}, KeyInfo{Key: "a"}, KeyInfo{Key: "c.d"})
	assert.Equal(t, []string{"a", "b", "c.d"}, Keys())
}

func TestDefaults(t *testing.T) {
	withRegistry(t,
		KeyInfo{Key: "drivers.versionCheck", Default: false},
		KeyInfo{Key: "drivers.download.retries", Default: 3},
		KeyInfo{Key: "drivers.home"},
	)
	RegisterDeprecated("drivers.path", "drivers.home")

	assert.Equal(t, map[string]interface{}{
		"drivers.versionCheck":     false,
		"drivers.download.retries": 3,
	}, Defaults())
}

func TestParentKey(t *testing.T) {
	tests := []struct {
		key, expected string
	}{
		{"drivers.download.retries", "drivers.download"},
		{"drivers.home", "drivers"},
		{"simple", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, parentKey(tt.key))
	}
}
