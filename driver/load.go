package driver

import (
	"context"

	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/library"
	"github.com/dpup/driverhub/license"
	"github.com/dpup/driverhub/loader"
	"github.com/dpup/driverhub/logging"
	"github.com/dpup/driverhub/resolver"
	"github.com/dpup/driverhub/settings"
	"google.golang.org/grpc/codes"
)

// ErrNoRuntime is returned when a driver is loaded outside a registry.
var ErrNoRuntime = errors.NewC("driver is not attached to a registry", codes.FailedPrecondition)

// Runtime holds the collaborators drivers are loaded with.
type Runtime struct {
	Resolver *resolver.Resolver
	Loaders  *loader.Manager
	Gate     *license.Gate

	// Preferences are the settings the runtime was built from, if any.
	Preferences *settings.Preferences

	// Logger is used when the context passed to Load carries none.
	Logger logging.Logger

	// GlobalLibraries lists the files of the shared root loader. It is read
	// once, on the first load.
	GlobalLibraries func(context.Context) []string
}

// LoadError reports a failed load. It wraps one of the resolver, license or
// loader errors.
type LoadError struct {
	Driver string
	Err    error
}

func (e *LoadError) Error() string {
	return "driver '" + e.Driver + "' could not be loaded: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// Code classifies the error by its cause.
func (e *LoadError) Code() codes.Code { return errors.Code(e.Err) }

func (d *Driver) State() State { return d.state }

// IsLoaded reports whether the last load succeeded.
func (d *Driver) IsLoaded() bool { return d.state == StateLoaded }

// IsFailed reports whether the last load failed. It stays set until a
// successful load or a reset.
func (d *Driver) IsFailed() bool { return d.failed }

// Loader is the driver's isolated loader, nil until loaded.
func (d *Driver) Loader() *loader.Loader { return d.loader }

// ResetInstance drops the instance, loader and resolved files and returns the
// driver to StateUnloaded.
func (d *Driver) ResetInstance() {
	d.instance = nil
	d.loader = nil
	d.resolved = nil
	d.failed = false
	d.state = StateUnloaded
}

// Instance returns the driver instance, loading the driver first when needed.
// Custom loader drivers have no instance.
func (d *Driver) Instance(ctx context.Context) (any, error) {
	if d.instance != nil {
		return d.instance, nil
	}
	if err := d.Load(ctx, false); err != nil {
		return nil, err
	}
	return d.instance, nil
}

// Load resolves the driver's libraries, checks its license and instantiates
// it. A loaded driver is left alone unless force is set, which also downloads
// every downloadable library again.
func (d *Driver) Load(ctx context.Context, force bool) error {
	if d.state == StateLoaded && !force {
		return nil
	}
	rt := d.runtime()
	if rt != nil {
		ctx = logging.Ensure(ctx, rt.Logger)
	}
	ctx = logging.WithFields(ctx, "driver", d.FullName())
	if rt == nil {
		return d.fail(ctx, errors.Mark(ErrNoRuntime, 0))
	}
	d.state = StateResolving

	rt.Loaders.EnsureRoot(ctx, rt.GlobalLibraries)

	res, err := d.resolve(ctx, rt, force)
	if err != nil {
		return d.fail(ctx, err)
	}
	if len(res.Files) == 0 && d.hasActiveLibraries() {
		return d.fail(ctx, errors.Mark(resolver.ErrResolutionFailed, 0).
			WithCause(errors.New("no library files could be resolved")))
	}

	if rt.Gate != nil {
		err := rt.Gate.Check(ctx, license.Subject{
			ID:              d.id,
			FullName:        d.FullName(),
			LicenseRequired: d.licenseRequired,
			Text:            d.license,
			LicenseFiles:    res.Licenses,
		})
		if err != nil {
			return d.fail(ctx, err)
		}
	}

	d.loader = rt.Loaders.BuildIsolated(d.String(), res.Files)
	if d.customLoader {
		logging.Debugw(ctx, "driver uses a custom loader", "loader", d.loader.ID())
		d.loaded(nil)
		return nil
	}

	inst, err := d.loader.Instantiate(d.className)
	if err != nil {
		return d.fail(ctx, err)
	}
	d.loaded(inst)
	logging.Infow(ctx, "driver loaded", "class", d.className, "files", len(res.Files))
	return nil
}

// ClassPath resolves the driver's libraries, downloading missing ones, and
// returns the resulting files without loading the driver.
func (d *Driver) ClassPath(ctx context.Context) ([]string, error) {
	rt := d.runtime()
	if rt == nil {
		return nil, errors.Mark(ErrNoRuntime, 0)
	}
	res, err := d.resolve(ctx, rt, false)
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}

// UpdateFiles downloads every downloadable library again. On success the
// driver must be loaded again.
func (d *Driver) UpdateFiles(ctx context.Context) error {
	rt := d.runtime()
	if rt == nil {
		return errors.Mark(ErrNoRuntime, 0)
	}
	_, err := d.resolve(ctx, rt, true)
	return err
}

func (d *Driver) resolve(ctx context.Context, rt *Runtime, force bool) (*resolver.Result, error) {
	res, err := rt.Resolver.Resolve(ctx, resolver.Request{
		Driver:    d.FullName(),
		Libraries: d.libraries,
		Sources:   d.sources,
		Cached:    d.resolved,
		Force:     force,
	})
	if err != nil {
		return nil, err
	}
	d.resolved = res.Resolved
	if res.Refreshed {
		d.instance = nil
		d.loader = nil
		if d.state == StateLoaded {
			d.state = StateUnloaded
		}
	}
	return res, nil
}

func (d *Driver) loaded(inst any) {
	d.instance = inst
	d.failed = false
	d.state = StateLoaded
}

func (d *Driver) fail(ctx context.Context, cause error) error {
	d.instance = nil
	d.loader = nil
	d.failed = true
	d.state = StateFailed
	logging.Errorw(ctx, "driver could not be loaded", "error", cause)
	return &LoadError{Driver: d.FullName(), Err: cause}
}

func (d *Driver) hasActiveLibraries() bool {
	for _, lib := range d.libraries {
		if lib.IsActive() && lib.Type() != library.TypeLicense {
			return true
		}
	}
	return false
}

func (d *Driver) runtime() *Runtime {
	if d.provider == nil || d.provider.registry == nil {
		return nil
	}
	return d.provider.registry.runtime
}
