// Package loader provides isolated loaders for driver implementations.
//
// Every driver gets its own Loader built from its resolved files. Loaders
// chain to a shared root loader holding the global libraries, or to nothing
// when there are none. Implementations are found through a factory table
// rather than loaded dynamically: a class is visible to a loader only when
// the artifacts it was registered with are on the loader's path.
package loader

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dpup/driverhub/errors"
	"google.golang.org/grpc/codes"
)

var (
	// ErrClassLookupFailed is returned when a class is unknown or its
	// artifacts are not on the loader path.
	ErrClassLookupFailed = errors.NewC("driver class not found", codes.NotFound)

	// ErrInstantiationFailed is returned when a factory fails.
	ErrInstantiationFailed = errors.NewC("driver instantiation failed", codes.Internal)
)

// Loader is an isolated view of a set of files.
type Loader struct {
	id     string
	owner  string
	files  []string
	parent *Loader
	table  *Table
}

func (l *Loader) ID() string      { return l.id }
func (l *Loader) Owner() string   { return l.owner }
func (l *Loader) Parent() *Loader { return l.parent }

// Files returns the files owned by this loader, excluding its parents.
func (l *Loader) Files() []string { return slices.Clone(l.files) }

// Path returns the files visible to the loader, parents first.
func (l *Loader) Path() []string {
	if l.parent == nil {
		return l.Files()
	}
	return append(l.parent.Path(), l.files...)
}

// Lookup returns the factory for class.
func (l *Loader) Lookup(class string) (Factory, error) {
	r, ok := l.table.lookup(class)
	if !ok {
		return nil, errors.Mark(ErrClassLookupFailed, 0).
			WithCause(errors.Errorf("class %q is not registered", class))
	}
	path := l.Path()
	for _, pattern := range r.requires {
		if !onPath(path, pattern) {
			return nil, errors.Mark(ErrClassLookupFailed, 0).
				WithCause(errors.Errorf("class %q requires %q, which is not on the path of %s", class, pattern, l.owner))
		}
	}
	return r.factory, nil
}

// Instantiate looks up class and calls its factory. Factory errors and
// panics are reported as ErrInstantiationFailed.
func (l *Loader) Instantiate(class string) (inst any, err error) {
	f, err := l.Lookup(class)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			inst = nil
			err = errors.Mark(ErrInstantiationFailed, 0).WithCause(fmt.Errorf("panic: %v", r))
		}
	}()
	inst, err = f()
	if err != nil {
		return nil, errors.Mark(ErrInstantiationFailed, 0).WithCause(err)
	}
	if inst == nil {
		return nil, errors.Mark(ErrInstantiationFailed, 0).
			WithCause(errors.Errorf("factory for %q returned no instance", class))
	}
	return inst, nil
}

func onPath(path []string, pattern string) bool {
	for _, p := range path {
		if ok, _ := doublestar.Match(pattern, filepath.Base(p)); ok {
			return true
		}
	}
	return false
}
