package driver

import (
	"testing"

	"github.com/dpup/driverhub/library"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullName(t *testing.T) {
	tests := []struct {
		name, category, want string
	}{
		{"PostgreSQL", "", "PostgreSQL"},
		{"DB2 for LUW", "IBM", "IBM / DB2 for LUW"},
		{"IBM Informix", "IBM", "IBM Informix"},
	}
	for _, tt := range tests {
		d := &Driver{name: tt.name, category: tt.category}
		assert.Equal(t, tt.want, d.FullName())
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unloaded", StateUnloaded.String())
	assert.Equal(t, "resolving", StateResolving.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestDefinitionProperties(t *testing.T) {
	e := newEnv(t)
	d := e.define(t, Definition{
		ID:         "pg",
		Name:       "PG",
		Parameters: map[string]string{"query-get-active-db": "select current_database()"},
		Properties: map[string]string{"ssl": "false", InternalPropPrefix + "hidden": "1"},
	})

	assert.Equal(t, map[string]string{"ssl": "false", InternalPropPrefix + "hidden": "1"}, d.DefaultConnectionProperties())
	assert.Equal(t, map[string]string{"ssl": "false"}, d.ConnectionProperties())

	d.SetConnectionProperty("ssl", "true")
	assert.Equal(t, "true", d.ConnectionProperties()["ssl"])
	assert.Equal(t, "false", d.DefaultConnectionProperties()["ssl"])

	v, ok := d.DriverParameter("query-get-active-db")
	assert.True(t, ok)
	assert.Equal(t, "select current_database()", v)

	d.SetDriverParameters(map[string]string{})
	v, ok = d.DriverParameter("query-get-active-db")
	assert.True(t, ok, "defaults back custom parameters")
	assert.Equal(t, "select current_database()", v)

	d.SetDriverParameter("omit-catalog", "true", true)
	assert.Equal(t, "true", d.DefaultDriverParameters()["omit-catalog"])
	assert.Equal(t, map[string]string{"omit-catalog": "true"}, d.DriverParameters())
}

func TestIsModified(t *testing.T) {
	d := &Driver{}
	assert.False(t, d.IsModified())
	d.SetModified(true)
	assert.True(t, d.IsModified())
	d.SetTemporary(true)
	assert.False(t, d.IsModified(), "temporary drivers are never modified")
}

func TestIsSupportedByLocalSystem(t *testing.T) {
	local := library.LocalPlatform()
	assert.True(t, (&Driver{}).IsSupportedByLocalSystem())
	assert.True(t, (&Driver{platforms: []library.Platform{{OS: local.OS}}}).IsSupportedByLocalSystem())
	assert.False(t, (&Driver{platforms: []library.Platform{{OS: "plan9"}}}).IsSupportedByLocalSystem())
}

func TestAddLibrary(t *testing.T) {
	e := newEnv(t)
	declared := library.New("/opt/pg/postgresql.jar", library.TypeJar)
	d := e.define(t, Definition{ID: "pg", Name: "PG", Libraries: []*library.Library{declared}})

	assert.Same(t, declared, d.AddLibrary("/opt/pg/postgresql.jar", library.TypeJar))

	added := d.AddLibrary("/home/me/extra.jar", library.TypeJar)
	assert.True(t, added.IsCustom())
	assert.Equal(t, []*library.Library{declared, added}, d.Libraries())
	assert.False(t, d.AddLibraryRef(added))
}

func TestRemoveLibrary(t *testing.T) {
	e := newEnv(t)
	declared := library.New("/opt/pg/postgresql.jar", library.TypeJar)
	d := e.define(t, Definition{ID: "pg", Name: "PG", Libraries: []*library.Library{declared}})
	custom := d.AddLibrary("/home/me/extra.jar", library.TypeJar)

	assert.True(t, d.RemoveLibrary(declared))
	assert.True(t, declared.IsDisabled(), "declared libraries are disabled, not removed")
	assert.Contains(t, d.Libraries(), declared)

	assert.True(t, d.RemoveLibrary(custom))
	assert.NotContains(t, d.Libraries(), custom)
	assert.False(t, d.RemoveLibrary(custom))
}

func TestDisableDefaultLibraries(t *testing.T) {
	e := newEnv(t)
	declared := library.New("/opt/pg/postgresql.jar", library.TypeJar)
	d := e.define(t, Definition{ID: "pg", Name: "PG", Libraries: []*library.Library{declared}})
	custom := d.AddLibrary("/home/me/extra.jar", library.TypeJar)

	d.DisableDefaultLibraries()
	assert.True(t, declared.IsDisabled())
	assert.False(t, custom.IsDisabled())
}

func TestCreateDriverCopiesLibraries(t *testing.T) {
	e := newEnv(t)
	lib := library.New("/opt/pg/postgresql.jar", library.TypeJar)
	src := e.define(t, Definition{ID: "pg", Name: "PG", Category: "SQL", ClassName: "org.postgresql.Driver", Libraries: []*library.Library{lib}})

	c := e.provider.CreateDriver(src)
	assert.NotEqual(t, src.ID(), c.ID())
	assert.NotEmpty(t, c.ID())
	assert.True(t, c.IsCustom())
	assert.Equal(t, "SQL / PG", c.FullName())
	assert.Equal(t, "org.postgresql.Driver", c.ClassName())
	require.Len(t, c.Libraries(), 1)
	assert.NotSame(t, lib, c.Libraries()[0])
	assert.Equal(t, lib.Path(), c.Libraries()[0].Path())

	c.Libraries()[0].SetDisabled(true)
	assert.False(t, lib.IsDisabled(), "copies never alias the source libraries")

	assert.Nil(t, e.provider.Driver(c.ID()), "created drivers are not registered")
	require.NoError(t, e.provider.AddDriver(c))
	assert.Same(t, c, e.provider.Driver(c.ID()))
}

func TestCreateOriginalCopy(t *testing.T) {
	e := newEnv(t)
	declared := library.New("/opt/pg/postgresql.jar", library.TypeJar)
	nativeLib := library.New("/opt/pg/native.so", library.TypeLib)
	src := e.define(t, Definition{
		ID:              "pg",
		Name:            "PG",
		ClassName:       "org.postgresql.Driver",
		SampleURL:       "jdbc:postgresql://{host}[:{port}]/[{database}]",
		DefaultPort:     "5432",
		DefaultDatabase: "postgres",
		DefaultUser:     "postgres",
		Libraries:       []*library.Library{declared, nativeLib},
	})
	src.SetName("My PG")
	src.SetClassName("com.example.Wrapper")
	src.SetDefaultPort("6543")
	src.SetSampleURL("jdbc:pg://{host}")
	src.RemoveLibrary(declared)
	src.AddLibrary("/home/me/extra.jar", library.TypeJar)

	c := src.CreateOriginalCopy()
	assert.True(t, c.IsCustom())
	assert.Equal(t, "PG", c.Name())
	assert.Equal(t, "org.postgresql.Driver", c.ClassName())
	assert.Equal(t, "5432", c.DefaultPort())
	assert.Equal(t, "jdbc:postgresql://{host}[:{port}]/[{database}]", c.SampleURL())

	libs := c.Libraries()
	require.Len(t, libs, 2, "only the declared libraries are copied")
	for i, orig := range []*library.Library{declared, nativeLib} {
		assert.NotSame(t, orig, libs[i])
		assert.Equal(t, orig.Path(), libs[i].Path())
		assert.True(t, libs[i].IsCustom())
		assert.False(t, libs[i].IsDisabled())
	}
	assert.True(t, declared.IsDisabled(), "the source is left alone")
	assert.False(t, declared.IsCustom())
}

func TestCreateOriginalCopyOfCustomDriver(t *testing.T) {
	e := newEnv(t)
	src := e.provider.CreateDriver(nil)
	src.SetName("Scratch")
	lib := src.AddLibrary("/home/me/scratch.jar", library.TypeJar)
	declared := library.New("/opt/scratch/base.jar", library.TypeJar)
	src.AddLibraryRef(declared)

	c := src.CreateOriginalCopy()
	assert.Equal(t, "Scratch", c.Name())
	require.Len(t, c.Libraries(), 1)
	assert.NotSame(t, declared, c.Libraries()[0])
	assert.NotEqual(t, lib.Path(), c.Libraries()[0].Path())
}

func TestConnectionURL(t *testing.T) {
	e := newEnv(t)
	d := e.define(t, Definition{
		ID:              "pg",
		Name:            "PG",
		SampleURL:       "jdbc:postgresql://{host}[:{port}]/[{database}]",
		DefaultHost:     "localhost",
		DefaultPort:     "5432",
		DefaultDatabase: "postgres",
	})
	assert.False(t, d.IsSampleURLForced())
	assert.Equal(t, "jdbc:postgresql://localhost:5432/postgres", d.ConnectionURL(ConnectionInfo{}))
	assert.Equal(t, "jdbc:postgresql://db.internal:5432/app", d.ConnectionURL(ConnectionInfo{Host: "db.internal", Database: "app"}))

	d.SetDefaultPort("")
	d.SetDefaultDatabase("")
	assert.Equal(t, "jdbc:postgresql://localhost/", d.ConnectionURL(ConnectionInfo{}))
}

func TestConnectionURLUsesProviderBuilder(t *testing.T) {
	e := newEnv(t)
	p := e.reg.AddProvider("mysql", "MySQL", WithURLBuilder(func(d *Driver, info ConnectionInfo) string {
		return "mysql://" + info.Host
	}))
	d, err := p.DefineDriver(Definition{ID: "mysql8", Name: "MySQL 8", SampleURL: "jdbc:mysql://{host}"})
	require.NoError(t, err)

	assert.Equal(t, "mysql://db", d.ConnectionURL(ConnectionInfo{Host: "db"}))

	d.SetSampleURL("jdbc:mariadb://{host}")
	assert.True(t, d.IsSampleURLForced())
	assert.Equal(t, "jdbc:mariadb://db", d.ConnectionURL(ConnectionInfo{Host: "db"}))
}

func TestExpandURLTemplate(t *testing.T) {
	vars := map[string]string{"host": "h", "port": "1", "file": ""}
	tests := []struct {
		tmpl, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"{host}:{port}", "h:1"},
		{"{host}[:{port}]", "h:1"},
		{"jdbc:h2:[{file}]", "jdbc:h2:"},
		{"x[;user={user}]y", "xy"},
		{"{unknown}", ""},
		{"unterminated[{host}", "unterminated[h"},
		{"brace{host", "brace{host"},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandURLTemplate(tt.tmpl, vars))
		})
	}
}
