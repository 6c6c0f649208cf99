// Package resolver turns a driver's library references into the concrete
// files its loader is built from.
//
// Downloadable libraries are materialized by a Downloader and remembered per
// library; local libraries are looked up on disk. The caller owns the cache of
// resolved files and passes it in with every Request. A Result carries the
// updated cache, which the caller commits only on success.
package resolver

import (
	"context"
	"slices"

	"github.com/dpup/driverhub/dependency"
	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/library"
	"github.com/dpup/driverhub/logging"
	"github.com/spf13/afero"
	"google.golang.org/grpc/codes"
)

var (
	// ErrResolutionFailed is returned when the libraries of a driver could not
	// be materialized.
	ErrResolutionFailed = errors.NewC("library resolution failed", codes.FailedPrecondition)

	// ErrDownloadCancelled is returned when a download was cancelled.
	ErrDownloadCancelled = errors.NewC("library download cancelled", codes.Canceled)
)

// DefaultArchiveMembers select the members extracted from zip libraries.
var DefaultArchiveMembers = []string{"**/*.jar", "**/*.so", "**/*.dll", "**/*.dylib"}

// Request describes one resolution pass.
type Request struct {
	// Driver names the driver being resolved, for logs and downloaders.
	Driver string

	// Libraries in declaration order. Disabled and foreign-platform libraries
	// are ignored.
	Libraries []*library.Library

	// Sources are remote-only files the driver declares. When the driver has
	// no local libraries the downloader is asked for them.
	Sources []string

	// Cached holds the files of previously resolved downloadable libraries.
	// It is never modified.
	Cached map[*library.Library][]library.ResolvedFile

	// Force re-downloads every downloadable library.
	Force bool
}

// Result of a successful resolution.
type Result struct {
	// Files is the class path: ordered, de-duplicated and with zip archives
	// replaced by their members.
	Files []string

	// Licenses are the license texts of the driver's libraries.
	Licenses []string

	// Resolved is the complete replacement for Request.Cached.
	Resolved map[*library.Library][]library.ResolvedFile

	// Downloaded is set when the downloader was invoked.
	Downloaded bool

	// Refreshed is set when a forced download succeeded.
	Refreshed bool
}

// Resolver resolves library references. It is safe for concurrent use when
// its Downloader is.
type Resolver struct {
	fs             afero.Fs
	home           string
	downloader     Downloader
	builder        *dependency.Builder
	archiveMembers []string
	versionCheck   bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFs sets the filesystem libraries are read from.
func WithFs(fs afero.Fs) Option {
	return func(r *Resolver) { r.fs = fs }
}

// WithHome sets the drivers home, which relative library paths and extracted
// archives live under.
func WithHome(home string) Option {
	return func(r *Resolver) { r.home = home }
}

// WithDownloader sets the collaborator that materializes downloadable
// libraries. Defaults to Offline.
func WithDownloader(d Downloader) Option {
	return func(r *Resolver) { r.downloader = d }
}

// WithDependencySource sets where library dependencies are read from.
func WithDependencySource(src dependency.Source, opts ...dependency.BuilderOption) Option {
	return func(r *Resolver) { r.builder = dependency.NewBuilder(src, opts...) }
}

// WithArchiveMembers sets the doublestar patterns selecting zip members.
func WithArchiveMembers(patterns ...string) Option {
	return func(r *Resolver) {
		if len(patterns) > 0 {
			r.archiveMembers = patterns
		}
	}
}

// WithVersionCheck enables logging of newer library versions.
func WithVersionCheck(enabled bool) Option {
	return func(r *Resolver) { r.versionCheck = enabled }
}

// New returns a resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		fs:             afero.NewOsFs(),
		downloader:     Offline{},
		builder:        dependency.NewBuilder(nil),
		archiveMembers: DefaultArchiveMembers,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Home returns the drivers home.
func (r *Resolver) Home() string { return r.home }

// Fs returns the filesystem the resolver reads.
func (r *Resolver) Fs() afero.Fs { return r.fs }

// Resolve materializes the libraries of req.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	active := make([]*library.Library, 0, len(req.Libraries))
	for _, lib := range req.Libraries {
		if lib.IsActive() {
			active = append(active, lib)
		}
	}

	forest, err := r.builder.Build(ctx, active)
	if err != nil {
		return nil, r.failure(err)
	}

	resolved := make(map[*library.Library][]library.ResolvedFile, len(req.Cached))
	for lib, files := range req.Cached {
		resolved[lib] = slices.Clone(files)
	}

	var candidates []*dependency.Node
	localLibs := false
	for _, n := range forest {
		if !n.Library.IsDownloadable() {
			localLibs = true
			continue
		}
		if req.Force || !r.cachePresent(req.Cached[n.Library]) {
			candidates = append(candidates, n)
		}
	}

	res := &Result{Resolved: resolved}
	if len(candidates) > 0 || (!localLibs && len(req.Sources) > 0) {
		if err := r.download(ctx, req, forest, candidates, resolved); err != nil {
			return nil, err
		}
		res.Downloaded = true
		res.Refreshed = req.Force
	}

	if r.versionCheck && !res.Downloaded {
		r.checkVersions(ctx, active)
	}

	res.Files, res.Licenses = r.classPath(ctx, active, resolved)
	return res, nil
}

func (r *Resolver) download(ctx context.Context, req Request, forest, candidates []*dependency.Node, resolved map[*library.Library][]library.ResolvedFile) error {
	libs := make([]*library.Library, 0, len(candidates))
	for _, n := range candidates {
		libs = append(libs, n.Library)
	}
	logging.Infow(ctx, "downloading driver libraries", "driver", req.Driver, "candidates", len(libs), "force", req.Force)

	fetched, err := r.downloader.Fetch(ctx, &FetchRequest{
		Driver:     req.Driver,
		Candidates: libs,
		Forest:     candidates,
		Sources:    req.Sources,
		Force:      req.Force,
	})
	if err != nil {
		return r.failure(err)
	}

	for _, n := range candidates {
		var files []library.ResolvedFile
		var missing *library.Library
		dependency.Walk(n, func(node *dependency.Node) {
			if missing != nil {
				return
			}
			p, ok := fetched[node.Library.Key()]
			if !ok && !node.Library.IsDownloadable() {
				p, ok = node.Library.LocalPath(r.home), true
			}
			if !ok || p == "" {
				missing = node.Library
				return
			}
			files = append(files, library.FileFor(node.Library, p))
		})
		if missing != nil {
			logging.Errorw(ctx, "downloader did not provide library", "driver", req.Driver, "library", missing.String())
			return errors.Mark(ErrResolutionFailed, 0).
				WithCause(errors.Errorf("library %s was not materialized", missing))
		}
		resolved[n.Library] = files
	}
	return nil
}

// cachePresent reports whether a cached list exists and all its files are
// still on disk.
func (r *Resolver) cachePresent(files []library.ResolvedFile) bool {
	if files == nil {
		return false
	}
	for _, f := range files {
		if f.Path == "" {
			return false
		}
		if ok, err := afero.Exists(r.fs, f.Path); err != nil || !ok {
			return false
		}
	}
	return true
}

func (r *Resolver) failure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrDownloadCancelled) {
		return errors.Mark(ErrDownloadCancelled, 1).WithCause(err)
	}
	return errors.Mark(ErrResolutionFailed, 1).WithCause(err)
}

func (r *Resolver) checkVersions(ctx context.Context, libs []*library.Library) {
	lister, ok := r.downloader.(VersionLister)
	if !ok {
		return
	}
	for _, lib := range libs {
		if !lib.IsDownloadable() || lib.Version() == "" {
			continue
		}
		versions, err := lister.Versions(ctx, lib)
		if err != nil {
			logging.Debugw(ctx, "version lookup failed", "library", lib.String(), "error", err)
			continue
		}
		latest, ok := library.LatestVersion(versions)
		if ok && library.IsNewer(lib.Version(), latest) {
			logging.Infow(ctx, "newer library version available",
				"library", lib.DisplayName(), "current", lib.Version(), "latest", latest)
		}
	}
}
