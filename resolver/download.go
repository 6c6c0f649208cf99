package resolver

import (
	"context"

	"github.com/dpup/driverhub/dependency"
	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/library"
	"google.golang.org/grpc/codes"
)

// ErrLibraryNotFound is returned by downloaders that have no copy of a
// library. It is not retried.
var ErrLibraryNotFound = errors.NewC("library not available", codes.NotFound)

// ErrOffline is returned by the Offline downloader.
var ErrOffline = errors.NewC("library downloads are disabled", codes.FailedPrecondition)

// FetchRequest is handed to a Downloader once per resolution.
type FetchRequest struct {
	Driver string

	// Candidates are the root libraries that must be materialized.
	Candidates []*library.Library

	// Forest holds the dependency tree of each candidate, in the same order.
	// Every non-duplicate downloadable node must be materialized.
	Forest []*dependency.Node

	// Sources are remote-only files declared by the driver.
	Sources []string

	// Force asks for fresh copies even if files already exist.
	Force bool
}

// Downloader materializes libraries. Fetch returns the local path of every
// library it provided, keyed by library.Key. Returning an error fails the
// whole resolution; a cancelled ctx should surface as context.Canceled.
type Downloader interface {
	Fetch(ctx context.Context, req *FetchRequest) (map[string]string, error)
}

// VersionLister is implemented by downloaders that can enumerate the
// available versions of a library.
type VersionLister interface {
	Versions(ctx context.Context, lib *library.Library) ([]string, error)
}

// DownloaderFunc adapts a function to a Downloader.
type DownloaderFunc func(ctx context.Context, req *FetchRequest) (map[string]string, error)

func (f DownloaderFunc) Fetch(ctx context.Context, req *FetchRequest) (map[string]string, error) {
	return f(ctx, req)
}

// Offline is the downloader for headless or air-gapped use. Any request is a
// failure.
type Offline struct{}

func (Offline) Fetch(ctx context.Context, req *FetchRequest) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.Mark(ErrOffline, 0).
		WithCause(errors.Errorf("%d libraries of %s need downloading", len(req.Candidates), req.Driver))
}
