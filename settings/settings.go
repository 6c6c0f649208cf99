// Package settings persists driverhub preferences: the global library list,
// the drivers home, mirror sources and license acceptances.
//
// Values live in a Store, a plain string key/value contract with memory,
// sqlite and postgres implementations. Preferences layers typed accessors on
// top of a Store.
//
//	store := sqlite.New("file:settings.db")
//	prefs := settings.NewPreferences(store)
//	libs := prefs.GlobalLibraries(ctx)
package settings

import (
	"context"

	"github.com/dpup/driverhub/errors"
	"google.golang.org/grpc/codes"
)

var (
	// ErrNotFound is returned by Get when a key has no value.
	ErrNotFound = errors.NewC("setting not found", codes.NotFound)

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.NewC("invalid setting key", codes.InvalidArgument)
)

// Store is a string key/value store.
type Store interface {
	// Get returns the value of key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ValidateKey returns ErrInvalidKey for keys a Store will not accept.
func ValidateKey(key string) error {
	if key == "" {
		return errors.Mark(ErrInvalidKey, 1)
	}
	return nil
}
