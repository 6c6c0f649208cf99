package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformEnv(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"DH__DRIVERS__GLOBAL_LIBRARIES", "drivers.globalLibraries"},
		{"DH__DRIVERS__DOWNLOAD__RETRIES", "drivers.download.retries"},
		{"DH__FOOBAR", "foobar"},
		{"DH__A__B_C", "a.bC"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, TransformEnv(tt.input))
		})
	}
}

func TestSearchForConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "driverhub.yaml"), []byte("drivers: {}\n"), 0o600))

	assert.Equal(t, filepath.Join(root, "driverhub.yaml"), SearchForConfig("driverhub.yaml", nested))
	assert.Empty(t, SearchForConfig("driverhub-rando-11234.yaml", nested))
}
