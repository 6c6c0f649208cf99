package loader

import (
	"sort"
	"sync"
)

// Factory constructs a driver implementation.
type Factory func() (any, error)

type registration struct {
	class    string
	factory  Factory
	requires []string
}

// RegisterOption configures a registration.
type RegisterOption func(*registration)

// Requires declares artifacts that must be on the loader path for the class
// to be found. Patterns are doublestar patterns matched against file base
// names, e.g. "postgresql-*.jar".
func Requires(patterns ...string) RegisterOption {
	return func(r *registration) { r.requires = append(r.requires, patterns...) }
}

// Table maps implementation class names to factories.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*registration
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: map[string]*registration{}}
}

// Register adds or replaces the factory for class.
func (t *Table) Register(class string, f Factory, opts ...RegisterOption) {
	r := &registration{class: class, factory: f}
	for _, o := range opts {
		o(r)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[class] = r
}

// Classes lists the registered class names.
func (t *Table) Classes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries))
	for c := range t.entries {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (t *Table) lookup(class string) (*registration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.entries[class]
	return r, ok
}

var defaultTable = NewTable()

// Register adds a factory to the process-wide table. Driver implementations
// call it from init:
//
//	func init() {
//		loader.Register("org.postgresql.Driver", newDriver, loader.Requires("postgresql-*.jar"))
//	}
func Register(class string, f Factory, opts ...RegisterOption) {
	defaultTable.Register(class, f, opts...)
}

// DefaultTable returns the process-wide table.
func DefaultTable() *Table {
	return defaultTable
}
