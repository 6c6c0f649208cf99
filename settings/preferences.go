package settings

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/logging"
	"github.com/spf13/afero"
)

// Keys used by Preferences.
const (
	KeyGlobalLibraries  = "drivers.global.libraries"
	KeyDriversHome      = "drivers.home"
	KeyDriversSources   = "drivers.sources"
	LicenseAcceptPrefix = "driver.license.accept."
)

// listSeparator joins list values. Entries are URL escaped.
const listSeparator = "|"

// Defaults are used when the store holds no value.
type Defaults struct {
	DriversHome     string
	GlobalLibraries []string
	Sources         []string
}

// Acceptance records that a license was accepted.
type Acceptance struct {
	DriverID   string    `json:"driverId"`
	AcceptedAt time.Time `json:"acceptedAt"`
	Actor      string    `json:"actor,omitempty"`
}

// Preferences provides typed access to the settings driverhub reads.
type Preferences struct {
	store    Store
	fs       afero.Fs
	defaults Defaults
}

// PreferencesOption configures Preferences.
type PreferencesOption func(*Preferences)

// WithFs sets the filesystem the drivers home is created on.
func WithFs(fs afero.Fs) PreferencesOption {
	return func(p *Preferences) { p.fs = fs }
}

// WithDefaults sets fallbacks for values missing from the store.
func WithDefaults(d Defaults) PreferencesOption {
	return func(p *Preferences) { p.defaults = d }
}

// NewPreferences returns preferences backed by store.
func NewPreferences(store Store, opts ...PreferencesOption) *Preferences {
	p := &Preferences{store: store, fs: afero.NewOsFs()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Store returns the underlying store.
func (p *Preferences) Store() Store { return p.store }

// GlobalLibraries returns the libraries loaded into the shared root loader.
func (p *Preferences) GlobalLibraries(ctx context.Context) []string {
	if libs, ok := p.list(ctx, KeyGlobalLibraries); ok {
		return libs
	}
	return p.defaults.GlobalLibraries
}

// SetGlobalLibraries replaces the global library list. It takes effect the
// next time a root loader is created.
func (p *Preferences) SetGlobalLibraries(ctx context.Context, libs []string) error {
	return p.setList(ctx, KeyGlobalLibraries, libs)
}

// DriversSources returns the mirror directories libraries are copied from.
func (p *Preferences) DriversSources(ctx context.Context) []string {
	if src, ok := p.list(ctx, KeyDriversSources); ok {
		return src
	}
	return p.defaults.Sources
}

// SetDriversSources replaces the mirror directory list.
func (p *Preferences) SetDriversSources(ctx context.Context, sources []string) error {
	return p.setList(ctx, KeyDriversSources, sources)
}

// DriversHome returns the directory driver libraries are stored in, creating
// it if needed. Failing to create it is logged, the path is still returned.
func (p *Preferences) DriversHome(ctx context.Context) string {
	home, err := p.store.Get(ctx, KeyDriversHome)
	if err != nil || home == "" {
		home = p.defaults.DriversHome
	}
	if home == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		home = filepath.Join(dir, "driverhub", "drivers")
	}
	if err := p.fs.MkdirAll(home, 0o755); err != nil {
		logging.Warnw(ctx, "can't create drivers home", "path", home, "error", err)
	}
	return home
}

// SetDriversHome overrides the drivers home.
func (p *Preferences) SetDriversHome(ctx context.Context, home string) error {
	return p.store.Set(ctx, KeyDriversHome, home)
}

// LicenseAcceptance returns the acceptance record for driverID, if any.
func (p *Preferences) LicenseAcceptance(ctx context.Context, driverID string) (*Acceptance, bool, error) {
	raw, err := p.store.Get(ctx, LicenseAcceptPrefix+driverID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == "" {
		return nil, false, nil
	}
	return parseAcceptance(driverID, raw), true, nil
}

// RecordLicense stores an acceptance.
func (p *Preferences) RecordLicense(ctx context.Context, a Acceptance) error {
	b, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	return p.store.Set(ctx, LicenseAcceptPrefix+a.DriverID, string(b))
}

// RevokeLicense removes the acceptance of driverID, so the license is
// presented again on the next load.
func (p *Preferences) RevokeLicense(ctx context.Context, driverID string) error {
	return p.store.Delete(ctx, LicenseAcceptPrefix+driverID)
}

// AcceptedLicenses lists the ids of drivers with a recorded acceptance.
func (p *Preferences) AcceptedLicenses(ctx context.Context) ([]string, error) {
	keys, err := p.store.Keys(ctx, LicenseAcceptPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, LicenseAcceptPrefix))
	}
	return ids, nil
}

// parseAcceptance reads JSON records and the older "true:<millis>:<user>"
// form. Any other non-empty value still counts as accepted.
func parseAcceptance(driverID, raw string) *Acceptance {
	a := &Acceptance{}
	if err := json.Unmarshal([]byte(raw), a); err == nil {
		if a.DriverID == "" {
			a.DriverID = driverID
		}
		return a
	}
	a = &Acceptance{DriverID: driverID}
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) >= 2 {
		if ms, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			a.AcceptedAt = time.UnixMilli(ms).UTC()
		}
	}
	if len(parts) == 3 {
		a.Actor = parts[2]
	}
	return a
}

func (p *Preferences) list(ctx context.Context, key string) ([]string, bool) {
	raw, err := p.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Warnw(ctx, "failed to read setting", "key", key, "error", err)
		}
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(raw, listSeparator) {
		if part == "" {
			continue
		}
		v, err := url.QueryUnescape(part)
		if err != nil {
			v = part
		}
		out = append(out, v)
	}
	return out, true
}

func (p *Preferences) setList(ctx context.Context, key string, values []string) error {
	escaped := make([]string, 0, len(values))
	for _, v := range values {
		escaped = append(escaped, url.QueryEscape(v))
	}
	return p.store.Set(ctx, key, strings.Join(escaped, listSeparator))
}
