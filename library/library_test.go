package library

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTypeRoundTrip(t *testing.T) {
	for _, ft := range []FileType{TypeJar, TypeLib, TypeLicense, TypeSource} {
		assert.Equal(t, ft, ParseFileType(ft.String()))
	}
	assert.Equal(t, TypeJar, ParseFileType("bogus"))
	assert.Equal(t, "FileType(42)", FileType(42).String())
}

func TestKey(t *testing.T) {
	byID := New("ignored.jar", TypeJar, WithID("org.postgresql:postgresql"), WithVersion("42.7.1"))
	byPath := New("drivers/h2.jar", TypeJar)
	license := New("drivers/h2.jar", TypeLicense)

	assert.Equal(t, "jar:org.postgresql:postgresql:42.7.1", byID.Key())
	assert.Equal(t, "jar:drivers/h2.jar:", byPath.Key())
	assert.NotEqual(t, byPath.Key(), license.Key(), "type is part of identity")
}

func TestPlatformSupport(t *testing.T) {
	tests := []struct {
		name    string
		systems []Platform
		on      Platform
		want    bool
	}{
		{"unrestricted", nil, Platform{OS: "linux", Arch: "amd64"}, true},
		{"exact", []Platform{{OS: "linux", Arch: "amd64"}}, Platform{OS: "linux", Arch: "amd64"}, true},
		{"any arch", []Platform{{OS: "darwin"}}, Platform{OS: "darwin", Arch: "arm64"}, true},
		{"wrong os", []Platform{{OS: "windows"}}, Platform{OS: "linux", Arch: "amd64"}, false},
		{"one of many", []Platform{{OS: "windows"}, {OS: "linux", Arch: "arm64"}}, Platform{OS: "linux", Arch: "arm64"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("native.so", TypeLib, ForPlatforms(tt.systems...))
			assert.Equal(t, tt.want, l.IsSupportedBy(tt.on))
		})
	}
}

func TestIsActive(t *testing.T) {
	assert.True(t, New("a.jar", TypeJar).IsActive())
	assert.False(t, New("a.jar", TypeJar, Disabled()).IsActive())
	assert.False(t, New("a.jar", TypeJar, ForPlatforms(Platform{OS: "plan9-nowhere"})).IsActive())
	assert.True(t, New("a.jar", TypeJar, ForPlatforms(LocalPlatform())).IsActive())
}

func TestLocalPath(t *testing.T) {
	home := t.TempDir()
	abs := filepath.Join(home, "abs.jar")

	assert.Equal(t, filepath.Join(home, "pg", "postgresql-42.7.1.jar"),
		New("pg/postgresql-{version}.jar", TypeJar, WithVersion("42.7.1")).LocalPath(home))
	assert.Equal(t, abs, New(abs, TypeJar).LocalPath("/elsewhere"))
	assert.Equal(t, "rel.jar", New("rel.jar", TypeJar).LocalPath(""))
}

func TestCopyIsDistinct(t *testing.T) {
	dep := New("dep.jar", TypeJar)
	orig := New("a.jar", TypeJar, DependsOn(dep), ForPlatforms(Platform{OS: "linux"}))

	c := orig.Copy()
	require.NotSame(t, orig, c)
	assert.Equal(t, orig.Key(), c.Key())

	c.SetDisabled(true)
	c.SetCustom(true)
	assert.False(t, orig.IsDisabled())
	assert.False(t, orig.IsCustom())

	require.Len(t, c.Dependencies(), 1)
	copied := c.Dependencies()[0]
	assert.NotSame(t, dep, copied, "dependencies are copied with the library")
	assert.Equal(t, dep.Key(), copied.Key())
	copied.SetDisabled(true)
	assert.False(t, dep.IsDisabled())
}

func TestCopyKeepsSharedDependenciesShared(t *testing.T) {
	common := New("common.jar", TypeJar)
	left := New("left.jar", TypeJar, DependsOn(common))
	right := New("right.jar", TypeJar, DependsOn(common))
	root := New("root.jar", TypeJar, DependsOn(left, right))

	c := root.Copy()
	deps := c.Dependencies()
	require.Len(t, deps, 2)
	assert.Same(t, deps[0].Dependencies()[0], deps[1].Dependencies()[0], "a diamond stays a diamond")
	assert.NotSame(t, common, deps[0].Dependencies()[0])
	assert.Empty(t, common.Dependencies())
}

func TestFileFor(t *testing.T) {
	l := New("x.jar", TypeJar, WithID("com.acme:x"), WithVersion("1.0.0"))
	assert.Equal(t, ResolvedFile{LibraryID: "com.acme:x", Version: "1.0.0", Type: TypeJar, Path: "/h/x.jar"}, FileFor(l, "/h/x.jar"))
}

func TestLatestVersion(t *testing.T) {
	v, ok := LatestVersion([]string{"1.2.0", "not-a-version", "1.10.0", "1.9.9"})
	require.True(t, ok)
	assert.Equal(t, "1.10.0", v)

	_, ok = LatestVersion([]string{"nope"})
	assert.False(t, ok)
}

func TestIsNewer(t *testing.T) {
	assert.True(t, IsNewer("42.6.0", "42.7.1"))
	assert.False(t, IsNewer("42.7.1", "42.7.1"))
	assert.False(t, IsNewer("latest", "42.7.1"))
}
