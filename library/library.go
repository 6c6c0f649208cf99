// Package library describes the binary artifacts a driver needs before it can
// be instantiated: jars, native libraries, license texts and sources. A
// Library is a reference; where the file actually lives is decided by the
// resolver.
package library

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// FileType classifies a library file.
type FileType int

const (
	TypeJar FileType = iota
	TypeLib
	TypeLicense
	TypeSource
)

func (t FileType) String() string {
	switch t {
	case TypeJar:
		return "jar"
	case TypeLib:
		return "lib"
	case TypeLicense:
		return "license"
	case TypeSource:
		return "source"
	default:
		return fmt.Sprintf("FileType(%d)", int(t))
	}
}

// ParseFileType is the inverse of FileType.String. Unknown values map to
// TypeJar.
func ParseFileType(s string) FileType {
	switch strings.ToLower(s) {
	case "lib":
		return TypeLib
	case "license":
		return TypeLicense
	case "source":
		return TypeSource
	default:
		return TypeJar
	}
}

// Platform names an OS/architecture pair using GOOS and GOARCH values. An
// empty field matches anything.
type Platform struct {
	OS   string
	Arch string
}

// LocalPlatform is the platform the process runs on.
func LocalPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Matches reports whether p covers other.
func (p Platform) Matches(other Platform) bool {
	return (p.OS == "" || strings.EqualFold(p.OS, other.OS)) &&
		(p.Arch == "" || strings.EqualFold(p.Arch, other.Arch))
}

func (p Platform) String() string {
	os, arch := p.OS, p.Arch
	if os == "" {
		os = "*"
	}
	if arch == "" {
		arch = "*"
	}
	return os + "/" + arch
}

// Library is a reference to a driver artifact.
type Library struct {
	path         string
	id           string
	version      string
	fileType     FileType
	downloadable bool
	disabled     bool
	custom       bool
	systems      []Platform
	deps         []*Library
	description  string
}

// Option configures a Library.
type Option func(*Library)

// WithID sets the artifact id, e.g. "org.postgresql:postgresql".
func WithID(id string) Option {
	return func(l *Library) { l.id = id }
}

// WithVersion sets the artifact version.
func WithVersion(v string) Option {
	return func(l *Library) { l.version = v }
}

// Downloadable marks the library as fetched by a downloader rather than
// found at its path.
func Downloadable() Option {
	return func(l *Library) { l.downloadable = true }
}

// Custom marks the library as user supplied.
func Custom() Option {
	return func(l *Library) { l.custom = true }
}

// Disabled excludes the library from resolution.
func Disabled() Option {
	return func(l *Library) { l.disabled = true }
}

// ForPlatforms restricts the library to the given platforms.
func ForPlatforms(p ...Platform) Option {
	return func(l *Library) { l.systems = append(l.systems, p...) }
}

// DependsOn declares the libraries this one requires.
func DependsOn(deps ...*Library) Option {
	return func(l *Library) { l.deps = append(l.deps, deps...) }
}

// WithDescription sets a human readable description.
func WithDescription(d string) Option {
	return func(l *Library) { l.description = d }
}

// New returns a library reference for path.
func New(path string, t FileType, opts ...Option) *Library {
	l := &Library{path: path, fileType: t}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Library) Path() string          { return l.path }
func (l *Library) ID() string            { return l.id }
func (l *Library) Version() string       { return l.version }
func (l *Library) Type() FileType        { return l.fileType }
func (l *Library) IsDownloadable() bool  { return l.downloadable }
func (l *Library) IsDisabled() bool      { return l.disabled }
func (l *Library) IsCustom() bool        { return l.custom }
func (l *Library) Description() string   { return l.description }
func (l *Library) Platforms() []Platform { return slices.Clone(l.systems) }

// Dependencies returns the declared dependencies.
func (l *Library) Dependencies() []*Library { return slices.Clone(l.deps) }

func (l *Library) SetDisabled(disabled bool) { l.disabled = disabled }
func (l *Library) SetCustom(custom bool)     { l.custom = custom }

// DisplayName is the id when one is set and the path otherwise.
func (l *Library) DisplayName() string {
	if l.id != "" {
		return l.id
	}
	return l.path
}

// Key identifies the artifact a library refers to. Two references with the
// same key are the same node in a dependency graph.
func (l *Library) Key() string {
	return l.fileType.String() + ":" + l.DisplayName() + ":" + l.version
}

// IsSupportedBy reports whether the library may be used on p. Libraries
// without platform restrictions are supported everywhere.
func (l *Library) IsSupportedBy(p Platform) bool {
	if len(l.systems) == 0 {
		return true
	}
	for _, s := range l.systems {
		if s.Matches(p) {
			return true
		}
	}
	return false
}

// IsSupportedByLocalSystem is IsSupportedBy for the running platform.
func (l *Library) IsSupportedByLocalSystem() bool {
	return l.IsSupportedBy(LocalPlatform())
}

// IsActive reports whether the library takes part in resolution.
func (l *Library) IsActive() bool {
	return !l.disabled && l.IsSupportedByLocalSystem()
}

// LocalPath returns where the library is expected on disk. "{version}" is
// substituted and relative paths are resolved against home.
func (l *Library) LocalPath(home string) string {
	p := strings.ReplaceAll(l.path, "{version}", l.version)
	if p == "" || filepath.IsAbs(p) || home == "" {
		return p
	}
	return filepath.Join(home, p)
}

// Copy returns a distinct library with the same attributes. Its dependency
// tree is copied too, so mutating either side never reaches the other.
func (l *Library) Copy() *Library {
	return l.copyTree(map[*Library]*Library{})
}

func (l *Library) copyTree(done map[*Library]*Library) *Library {
	if c, ok := done[l]; ok {
		return c
	}
	c := *l
	done[l] = &c
	c.systems = slices.Clone(l.systems)
	c.deps = make([]*Library, len(l.deps))
	for i, dep := range l.deps {
		c.deps[i] = dep.copyTree(done)
	}
	if l.deps == nil {
		c.deps = nil
	}
	return &c
}

func (l *Library) String() string {
	if l.version != "" {
		return l.DisplayName() + ":" + l.version
	}
	return l.DisplayName()
}

// ResolvedFile is a concrete file materialized for a library.
type ResolvedFile struct {
	LibraryID string
	Version   string
	Type      FileType
	Path      string
}

// FileFor builds the ResolvedFile of l at path.
func FileFor(l *Library, path string) ResolvedFile {
	return ResolvedFile{LibraryID: l.DisplayName(), Version: l.version, Type: l.fileType, Path: path}
}
