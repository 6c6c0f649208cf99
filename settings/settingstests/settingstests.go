// Package settingstests provides common acceptance tests for settings.Store
// implementations.
package settingstests

import (
	"testing"

	"github.com/dpup/driverhub/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a store. newStore must return an empty store on every call.
func Run(t *testing.T, newStore func() settings.Store) {
	t.Run("TestSetGetRoundTrip", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.Set(t.Context(), "drivers.home", "/opt/drivers"))

		v, err := s.Get(t.Context(), "drivers.home")
		require.NoError(t, err)
		assert.Equal(t, "/opt/drivers", v)
	})

	t.Run("TestGetMissing", func(t *testing.T) {
		s := newStore()
		_, err := s.Get(t.Context(), "nope")
		assert.ErrorIs(t, err, settings.ErrNotFound)
	})

	t.Run("TestOverwrite", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.Set(t.Context(), "k", "one"))
		require.NoError(t, s.Set(t.Context(), "k", "two"))

		v, err := s.Get(t.Context(), "k")
		require.NoError(t, err)
		assert.Equal(t, "two", v)
	})

	t.Run("TestEmptyAndUnicodeValues", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.Set(t.Context(), "empty", ""))
		require.NoError(t, s.Set(t.Context(), "unicode", "lizenz akzeptiert ✓ | ü"))

		v, err := s.Get(t.Context(), "empty")
		require.NoError(t, err)
		assert.Equal(t, "", v)

		v, err = s.Get(t.Context(), "unicode")
		require.NoError(t, err)
		assert.Equal(t, "lizenz akzeptiert ✓ | ü", v)
	})

	t.Run("TestInvalidKey", func(t *testing.T) {
		s := newStore()
		assert.ErrorIs(t, s.Set(t.Context(), "", "x"), settings.ErrInvalidKey)
	})

	t.Run("TestDelete", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.Set(t.Context(), "k", "v"))
		require.NoError(t, s.Delete(t.Context(), "k"))

		_, err := s.Get(t.Context(), "k")
		assert.ErrorIs(t, err, settings.ErrNotFound)

		assert.NoError(t, s.Delete(t.Context(), "k"), "deleting a missing key is fine")
	})

	t.Run("TestKeysByPrefix", func(t *testing.T) {
		s := newStore()
		for _, k := range []string{
			"driver.license.accept.pg",
			"driver.license.accept.db2",
			"driver.license.acceptx",
			"drivers.home",
		} {
			require.NoError(t, s.Set(t.Context(), k, "v"))
		}

		keys, err := s.Keys(t.Context(), "driver.license.accept.")
		require.NoError(t, err)
		assert.Equal(t, []string{"driver.license.accept.db2", "driver.license.accept.pg"}, keys)

		all, err := s.Keys(t.Context(), "")
		require.NoError(t, err)
		assert.Len(t, all, 4)

		none, err := s.Keys(t.Context(), "missing.")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("TestKeysPrefixIsLiteral", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.Set(t.Context(), "a_b.1", "v"))
		require.NoError(t, s.Set(t.Context(), "axb.2", "v"))
		require.NoError(t, s.Set(t.Context(), "a%c.3", "v"))

		keys, err := s.Keys(t.Context(), "a_b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a_b.1"}, keys)

		keys, err = s.Keys(t.Context(), "a%")
		require.NoError(t, err)
		assert.Equal(t, []string{"a%c.3"}, keys)
	})
}
