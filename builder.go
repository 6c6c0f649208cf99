package driverhub

import (
	"context"
	"strings"
	"time"

	"github.com/dpup/driverhub/dependency"
	"github.com/dpup/driverhub/driver"
	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/internal/config"
	"github.com/dpup/driverhub/license"
	"github.com/dpup/driverhub/loader"
	"github.com/dpup/driverhub/logging"
	"github.com/dpup/driverhub/resolver"
	"github.com/dpup/driverhub/settings"
	"github.com/dpup/driverhub/settings/memory"
	"github.com/dpup/driverhub/settings/postgres"
	"github.com/dpup/driverhub/settings/sqlite"
	"github.com/spf13/afero"
	"google.golang.org/grpc/codes"
)

// ErrInvalidConfig is returned by New when the configuration can't be used.
var ErrInvalidConfig = errors.NewC("invalid driverhub configuration", codes.InvalidArgument)

// Option customizes the registry built by New.
type Option func(*builder)

// WithStore sets the settings store, overriding settings.driver.
func WithStore(s settings.Store) Option {
	return func(b *builder) { b.store = s }
}

// WithDownloader sets the downloader. By default libraries are copied from
// the configured drivers sources, or not downloaded at all when there are
// none.
func WithDownloader(d resolver.Downloader) Option {
	return func(b *builder) { b.downloader = d }
}

// WithPrompter sets who is asked to accept driver licenses. Without one every
// license is declined.
func WithPrompter(p license.Prompter) Option {
	return func(b *builder) { b.prompter = p }
}

// WithLogger sets the logger used when a context carries none.
func WithLogger(l logging.Logger) Option {
	return func(b *builder) { b.logger = l }
}

// WithFs sets the filesystem drivers are resolved on.
func WithFs(fs afero.Fs) Option {
	return func(b *builder) { b.fs = fs }
}

// WithLoaderManager sets the loader manager. Defaults to loader.Shared().
func WithLoaderManager(m *loader.Manager) Option {
	return func(b *builder) { b.loaders = m }
}

// WithDependencySource sets where library dependencies are read from. Lookups
// are cached.
func WithDependencySource(src dependency.Source) Option {
	return func(b *builder) { b.dependencies = src }
}

// WithProvider registers a provider and its built-in drivers.
func WithProvider(id, name string, defs ...driver.Definition) Option {
	return func(b *builder) {
		b.providers = append(b.providers, providerDefs{id: id, name: name, defs: defs})
	}
}

type providerDefs struct {
	id, name string
	defs     []driver.Definition
}

type builder struct {
	fs           afero.Fs
	logger       logging.Logger
	store        settings.Store
	downloader   resolver.Downloader
	prompter     license.Prompter
	loaders      *loader.Manager
	dependencies dependency.Source
	providers    []providerDefs

	storeDriver    string
	dsn            string
	table          string
	home           string
	globals        []string
	sources        []string
	versionCheck   bool
	archiveMembers []string
	retries        int
	backoff        time.Duration
	cacheSize      int
	actor          string
}

// New returns a driver registry wired from Config and opts.
func New(opts ...Option) (*driver.Registry, error) {
	config.ApplyDefaults(Config)

	b := &builder{
		fs:             afero.NewOsFs(),
		storeDriver:    Config.String("settings.driver"),
		dsn:            Config.String("settings.dsn"),
		table:          Config.String("settings.table"),
		home:           Config.String("drivers.home"),
		globals:        Config.Strings("drivers.globalLibraries"),
		sources:        Config.Strings("drivers.sources"),
		versionCheck:   Config.Bool("drivers.versionCheck"),
		archiveMembers: Config.Strings("drivers.archiveMembers"),
		retries:        Config.Int("drivers.download.retries"),
		backoff:        Config.Duration("drivers.download.backoff"),
		cacheSize:      Config.Int("drivers.metadataCacheSize"),
		actor:          Config.String("license.actor"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b.build()
}

func (b *builder) build() (*driver.Registry, error) {
	if b.logger == nil {
		b.logger = logging.NewProdLogger()
	}
	ctx := logging.With(context.Background(), b.logger)

	if warnings := ValidateConfig(); warnings != "" {
		logging.Warn(ctx, warnings)
	}

	store, err := b.buildStore()
	if err != nil {
		return nil, err
	}
	prefs := settings.NewPreferences(store,
		settings.WithFs(b.fs),
		settings.WithDefaults(settings.Defaults{
			DriversHome:     b.home,
			GlobalLibraries: b.globals,
			Sources:         b.sources,
		}))
	home := prefs.DriversHome(ctx)

	downloader := b.downloader
	if downloader == nil {
		if sources := prefs.DriversSources(ctx); len(sources) > 0 {
			downloader = resolver.WithRetry(resolver.NewMirror(b.fs, home, sources...), b.retries, b.backoff)
		} else {
			logging.Info(ctx, "no drivers sources configured, library downloads are disabled")
			downloader = resolver.Offline{}
		}
	}

	res := resolver.New(
		resolver.WithFs(b.fs),
		resolver.WithHome(home),
		resolver.WithDownloader(downloader),
		resolver.WithDependencySource(dependency.NewCachedSource(b.dependencies, b.cacheSize)),
		resolver.WithArchiveMembers(b.archiveMembers...),
		resolver.WithVersionCheck(b.versionCheck),
	)

	loaders := b.loaders
	if loaders == nil {
		loaders = loader.Shared()
	}

	reg := driver.NewRegistry(&driver.Runtime{
		Resolver:        res,
		Loaders:         loaders,
		Gate:            license.NewGate(prefs, b.prompter, license.WithFs(b.fs), license.WithActor(b.actor)),
		Preferences:     prefs,
		Logger:          b.logger,
		GlobalLibraries: prefs.GlobalLibraries,
	})

	for _, p := range b.providers {
		provider := reg.AddProvider(p.id, p.name)
		for _, def := range p.defs {
			if _, err := provider.DefineDriver(def); err != nil {
				return nil, err
			}
		}
	}
	reg.Init(ctx)

	logging.Infow(ctx, "driver registry ready", "home", home, "drivers", len(reg.Drivers()))
	return reg, nil
}

func (b *builder) buildStore() (settings.Store, error) {
	if b.store != nil {
		return b.store, nil
	}
	switch strings.ToLower(b.storeDriver) {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		if b.dsn == "" {
			return nil, errors.Mark(ErrInvalidConfig, 0).WithCause(errors.New("settings.dsn is required for the sqlite store"))
		}
		return sqlite.SafeNew(b.dsn, sqlite.WithTableName(b.table))
	case "postgres":
		if b.dsn == "" {
			return nil, errors.Mark(ErrInvalidConfig, 0).WithCause(errors.New("settings.dsn is required for the postgres store"))
		}
		return postgres.SafeNew(b.dsn, postgres.WithTableName(b.table))
	default:
		return nil, errors.Mark(ErrInvalidConfig, 0).WithCause(errors.Errorf("unknown settings.driver %q", b.storeDriver))
	}
}
