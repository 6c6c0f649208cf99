// Package driver holds database driver definitions and their registry.
//
// A Driver combines the identity of a database driver with the libraries it
// needs and the state of its last load. Loading resolves the libraries, asks
// the license gate, builds an isolated loader and instantiates the driver
// class through it:
//
//	reg := driver.NewRegistry(rt)
//	pg, _ := reg.AddProvider("postgresql", "PostgreSQL").DefineDriver(driver.Definition{
//	    ID:        "postgres-jdbc",
//	    Name:      "PostgreSQL",
//	    ClassName: "org.postgresql.Driver",
//	    Libraries: []*library.Library{library.New("/opt/pg/postgresql.jar", library.TypeJar)},
//	})
//	inst, err := pg.Instance(ctx)
//
// Drivers are not safe for concurrent use. Callers run one Load at a time per
// driver.
package driver

import (
	"maps"
	"slices"
	"strings"

	"github.com/dpup/driverhub/library"
	"github.com/dpup/driverhub/loader"
	"github.com/google/uuid"
)

// InternalPropPrefix marks connection properties that are kept as defaults
// but never exposed as user properties.
const InternalPropPrefix = "@driverhub-"

// Replacement names a driver superseded by another.
type Replacement struct {
	ProviderID string
	DriverID   string
}

// Definition is the declarative description of a built-in driver, as read
// from whatever configuration source the host uses.
type Definition struct {
	ID          string
	Name        string
	Description string
	Category    string
	Categories  []string

	// ClassName is the identifier the driver factory was registered under.
	ClassName string

	// SampleURL is a connection URL template such as
	// "jdbc:postgresql://{host}[:{port}]/[{database}]". Bracketed segments are
	// dropped when a variable in them is empty.
	SampleURL string

	DefaultHost     string
	DefaultPort     string
	DefaultServer   string
	DefaultDatabase string
	DefaultUser     string

	Embedded        bool
	Instantiable    bool
	ClientRequired  bool
	LicenseRequired bool

	// CustomLoader drivers are only resolved. Their instances are created
	// elsewhere.
	CustomLoader bool

	Promoted int

	// License is an inline license text. When empty the driver's license
	// libraries are read.
	License string

	Libraries []*library.Library

	// Sources are remote-only files fetched when the driver has no local
	// libraries.
	Sources []string

	Platforms  []library.Platform
	Replaces   []Replacement
	Parameters map[string]string
	Properties map[string]string
}

type originals struct {
	name, description, className, sampleURL string
	port, database, server, user           string
	embedded, instantiable                 bool
}

// Driver is a driver definition together with its load state.
type Driver struct {
	provider *Provider

	id          string
	name        string
	description string
	category    string
	categories  []string
	className   string
	sampleURL   string

	defaultHost     string
	defaultPort     string
	defaultServer   string
	defaultDatabase string
	defaultUser     string

	embedded        bool
	instantiable    bool
	clientRequired  bool
	licenseRequired bool
	customLoader    bool
	custom          bool
	temporary       bool
	disabled        bool
	modified        bool
	promoted        int
	license         string

	libraries     []*library.Library
	origLibraries []*library.Library
	sources       []string
	platforms     []library.Platform
	replaces      []Replacement
	replacedBy    *Driver

	defaultParams map[string]string
	customParams  map[string]string
	defaultProps  map[string]string
	customProps   map[string]string

	// nil for custom drivers
	orig *originals

	state    State
	failed   bool
	instance any
	loader   *loader.Loader
	resolved map[*library.Library][]library.ResolvedFile
}

func newBuiltin(p *Provider, def Definition) *Driver {
	d := &Driver{
		provider:        p,
		id:              def.ID,
		name:            def.Name,
		description:     def.Description,
		category:        def.Category,
		categories:      slices.Clone(def.Categories),
		className:       def.ClassName,
		sampleURL:       def.SampleURL,
		defaultHost:     def.DefaultHost,
		defaultPort:     def.DefaultPort,
		defaultServer:   def.DefaultServer,
		defaultDatabase: def.DefaultDatabase,
		defaultUser:     def.DefaultUser,
		embedded:        def.Embedded,
		instantiable:    def.Instantiable,
		clientRequired:  def.ClientRequired,
		licenseRequired: def.LicenseRequired,
		customLoader:    def.CustomLoader,
		promoted:        def.Promoted,
		license:         def.License,
		libraries:       slices.Clone(def.Libraries),
		origLibraries:   slices.Clone(def.Libraries),
		sources:         slices.Clone(def.Sources),
		platforms:       slices.Clone(def.Platforms),
		replaces:        slices.Clone(def.Replaces),
		defaultParams:   cloneMap(def.Parameters),
		customParams:    cloneMap(def.Parameters),
		defaultProps:    cloneMap(def.Properties),
		customProps:     map[string]string{},
	}
	for k, v := range def.Properties {
		if !strings.HasPrefix(k, InternalPropPrefix) {
			d.customProps[k] = v
		}
	}
	d.orig = &originals{
		name:         def.Name,
		description:  def.Description,
		className:    def.ClassName,
		sampleURL:    def.SampleURL,
		port:         def.DefaultPort,
		database:     def.DefaultDatabase,
		server:       def.DefaultServer,
		user:         def.DefaultUser,
		embedded:     def.Embedded,
		instantiable: def.Instantiable,
	}
	return d
}

// copyOf returns a custom driver with id that copies from. Libraries are
// copied, never shared.
func copyOf(p *Provider, id string, from *Driver) *Driver {
	d := &Driver{
		provider:        p,
		id:              id,
		name:            from.name,
		description:     from.description,
		category:        from.category,
		categories:      slices.Clone(from.categories),
		className:       from.className,
		sampleURL:       from.sampleURL,
		defaultHost:     from.defaultHost,
		defaultPort:     from.defaultPort,
		defaultServer:   from.defaultServer,
		defaultDatabase: from.defaultDatabase,
		defaultUser:     from.defaultUser,
		embedded:        from.embedded,
		instantiable:    from.instantiable,
		clientRequired:  from.clientRequired,
		licenseRequired: from.licenseRequired,
		customLoader:    from.customLoader,
		custom:          true,
		promoted:        from.promoted,
		license:         from.license,
		sources:         slices.Clone(from.sources),
		platforms:       slices.Clone(from.platforms),
		defaultParams:   cloneMap(from.defaultParams),
		customParams:    cloneMap(from.customParams),
		defaultProps:    cloneMap(from.defaultProps),
		customProps:     cloneMap(from.customProps),
	}
	for _, lib := range from.libraries {
		d.libraries = append(d.libraries, lib.Copy())
	}
	return d
}

func cloneMap(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	maps.Copy(c, m)
	return c
}

func (d *Driver) ID() string              { return d.id }
func (d *Driver) Provider() *Provider     { return d.provider }
func (d *Driver) Name() string            { return d.name }
func (d *Driver) Description() string     { return d.description }
func (d *Driver) Category() string        { return d.category }
func (d *Driver) Categories() []string    { return slices.Clone(d.categories) }
func (d *Driver) ClassName() string       { return d.className }
func (d *Driver) SampleURL() string       { return d.sampleURL }
func (d *Driver) DefaultHost() string     { return d.defaultHost }
func (d *Driver) DefaultPort() string     { return d.defaultPort }
func (d *Driver) DefaultServer() string   { return d.defaultServer }
func (d *Driver) DefaultDatabase() string { return d.defaultDatabase }
func (d *Driver) DefaultUser() string     { return d.defaultUser }
func (d *Driver) IsEmbedded() bool        { return d.embedded }
func (d *Driver) IsInstantiable() bool    { return d.instantiable }
func (d *Driver) IsClientRequired() bool  { return d.clientRequired }
func (d *Driver) IsLicenseRequired() bool { return d.licenseRequired }
func (d *Driver) IsCustomLoader() bool    { return d.customLoader }
func (d *Driver) IsCustom() bool          { return d.custom }
func (d *Driver) IsTemporary() bool       { return d.temporary }
func (d *Driver) IsDisabled() bool        { return d.disabled }
func (d *Driver) Promoted() int           { return d.promoted }
func (d *Driver) License() string         { return d.license }
func (d *Driver) Sources() []string       { return slices.Clone(d.sources) }

func (d *Driver) SetName(name string)               { d.name = name }
func (d *Driver) SetDescription(description string) { d.description = description }
func (d *Driver) SetCategory(category string)       { d.category = category }
func (d *Driver) SetSampleURL(url string)           { d.sampleURL = url }
func (d *Driver) SetDefaultHost(host string)        { d.defaultHost = host }
func (d *Driver) SetDefaultPort(port string)        { d.defaultPort = port }
func (d *Driver) SetDefaultServer(server string)    { d.defaultServer = server }
func (d *Driver) SetDefaultDatabase(db string)      { d.defaultDatabase = db }
func (d *Driver) SetDefaultUser(user string)        { d.defaultUser = user }
func (d *Driver) SetEmbedded(embedded bool)         { d.embedded = embedded }
func (d *Driver) SetTemporary(temporary bool)       { d.temporary = temporary }
func (d *Driver) SetDisabled(disabled bool)         { d.disabled = disabled }
func (d *Driver) SetModified(modified bool)         { d.modified = modified }

// SetClassName changes the implementation class. A different class resets the
// driver.
func (d *Driver) SetClassName(className string) {
	if d.className != className {
		d.className = className
		d.ResetInstance()
	}
}

// Original values of a built-in driver. Custom drivers report their current
// values.
func (d *Driver) OrigName() string {
	if d.orig == nil {
		return d.name
	}
	return d.orig.name
}

func (d *Driver) OrigDescription() string {
	if d.orig == nil {
		return d.description
	}
	return d.orig.description
}

func (d *Driver) OrigClassName() string {
	if d.orig == nil {
		return d.className
	}
	return d.orig.className
}

func (d *Driver) OrigSampleURL() string {
	if d.orig == nil {
		return d.sampleURL
	}
	return d.orig.sampleURL
}

// FullName is "category / name", or just the name when it already mentions
// the category.
func (d *Driver) FullName() string {
	if d.category == "" || strings.Contains(d.name, d.category) {
		return d.name
	}
	return d.category + " / " + d.name
}

// IsModified reports whether a non-temporary driver was changed by the user.
func (d *Driver) IsModified() bool {
	return !d.temporary && d.modified
}

// IsSupportedByLocalSystem reports whether the driver runs on this platform.
func (d *Driver) IsSupportedByLocalSystem() bool {
	if len(d.platforms) == 0 {
		return true
	}
	local := library.LocalPlatform()
	for _, p := range d.platforms {
		if p.Matches(local) {
			return true
		}
	}
	return false
}

// Replaces reports whether d supersedes other.
func (d *Driver) Replaces(other *Driver) bool {
	if other == nil || other.provider == nil {
		return false
	}
	for _, r := range d.replaces {
		if r.ProviderID == other.provider.id && r.DriverID == other.id {
			return true
		}
	}
	return false
}

// Replacements lists the drivers d supersedes.
func (d *Driver) Replacements() []Replacement { return slices.Clone(d.replaces) }

// ReplacedBy is the driver superseding d, if any.
func (d *Driver) ReplacedBy() *Driver { return d.replacedBy }

func (d *Driver) SetReplacedBy(successor *Driver) { d.replacedBy = successor }

// Driver parameters and connection properties. Custom values start as a copy
// of the defaults.

func (d *Driver) DefaultDriverParameters() map[string]string { return cloneMap(d.defaultParams) }
func (d *Driver) DriverParameters() map[string]string        { return cloneMap(d.customParams) }

// DriverParameter returns the custom value of name, or its default.
func (d *Driver) DriverParameter(name string) (string, bool) {
	if v, ok := d.customParams[name]; ok {
		return v, true
	}
	v, ok := d.defaultParams[name]
	return v, ok
}

// SetDriverParameter sets a custom parameter, and its default when setDefault
// is set.
func (d *Driver) SetDriverParameter(name, value string, setDefault bool) {
	d.customParams[name] = value
	if setDefault {
		d.defaultParams[name] = value
	}
}

func (d *Driver) SetDriverParameters(params map[string]string) {
	d.customParams = cloneMap(params)
}

func (d *Driver) DefaultConnectionProperties() map[string]string { return cloneMap(d.defaultProps) }
func (d *Driver) ConnectionProperties() map[string]string        { return cloneMap(d.customProps) }

func (d *Driver) SetConnectionProperty(name, value string) {
	d.customProps[name] = value
}

func (d *Driver) SetConnectionProperties(props map[string]string) {
	d.customProps = cloneMap(props)
}

// Libraries returns the driver's libraries in declaration order.
func (d *Driver) Libraries() []*library.Library { return slices.Clone(d.libraries) }

// AddLibrary adds a custom library at path, or returns the library already
// declared there.
func (d *Driver) AddLibrary(path string, t library.FileType) *library.Library {
	for _, lib := range d.libraries {
		if lib.Path() == path {
			return lib
		}
	}
	lib := library.New(path, t, library.Custom())
	d.AddLibraryRef(lib)
	return lib
}

// AddLibraryRef adds lib unless it is already present. It reports whether lib
// was added. The driver is reset either way.
func (d *Driver) AddLibraryRef(lib *library.Library) bool {
	d.ResetInstance()
	if slices.Contains(d.libraries, lib) {
		return false
	}
	d.libraries = append(d.libraries, lib)
	return true
}

// RemoveLibrary disables a declared library and removes a custom one.
func (d *Driver) RemoveLibrary(lib *library.Library) bool {
	d.ResetInstance()
	if !lib.IsCustom() {
		lib.SetDisabled(true)
		return true
	}
	i := slices.Index(d.libraries, lib)
	if i < 0 {
		return false
	}
	d.libraries = slices.Delete(d.libraries, i, i+1)
	return true
}

// SetLibraryEnabled enables or disables one of the driver's libraries.
func (d *Driver) SetLibraryEnabled(lib *library.Library, enabled bool) {
	if lib.IsDisabled() == !enabled {
		return
	}
	lib.SetDisabled(!enabled)
	d.ResetInstance()
}

// DisableDefaultLibraries disables every library that is not custom.
func (d *Driver) DisableDefaultLibraries() {
	for _, lib := range d.libraries {
		if !lib.IsCustom() {
			lib.SetDisabled(true)
		}
	}
	d.ResetInstance()
}

// IsLibraryResolved reports whether lib can be used without a download.
func (d *Driver) IsLibraryResolved(lib *library.Library) bool {
	return !lib.IsDownloadable() || len(d.resolved[lib]) > 0
}

// LibraryFiles returns the files lib resolved to in the last resolution.
func (d *Driver) LibraryFiles(lib *library.Library) []library.ResolvedFile {
	return slices.Clone(d.resolved[lib])
}

// CreateOriginalCopy returns a new custom driver seeded from the original
// values of d. Its libraries are fresh custom copies of the declared ones.
func (d *Driver) CreateOriginalCopy() *Driver {
	c := copyOf(d.provider, uuid.NewString(), d)
	c.libraries = nil
	src := d.origLibraries
	if d.orig == nil {
		src = d.libraries
	}
	for _, lib := range src {
		if lib.IsCustom() {
			continue
		}
		cp := lib.Copy()
		cp.SetCustom(true)
		cp.SetDisabled(false)
		c.libraries = append(c.libraries, cp)
	}
	if d.orig != nil {
		c.name = d.orig.name
		c.description = d.orig.description
		c.className = d.orig.className
		c.sampleURL = d.orig.sampleURL
		c.defaultPort = d.orig.port
		c.defaultDatabase = d.orig.database
		c.defaultServer = d.orig.server
		c.defaultUser = d.orig.user
		c.embedded = d.orig.embedded
		c.instantiable = d.orig.instantiable
	}
	return c
}

func (d *Driver) String() string {
	if d.provider == nil {
		return d.id
	}
	return d.provider.id + ":" + d.id
}
