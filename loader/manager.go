package loader

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dpup/driverhub/logging"
	"github.com/google/uuid"
)

// Manager owns the root loader and builds per-driver loaders.
type Manager struct {
	once  sync.Once
	root  atomic.Pointer[Loader]
	table *Table
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTable sets the factory table loaders resolve classes from.
func WithTable(t *Table) ManagerOption {
	return func(m *Manager) { m.table = t }
}

// NewManager returns a manager with no root loader yet.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{table: defaultTable}
	for _, o := range opts {
		o(m)
	}
	return m
}

var shared = NewManager()

// Shared returns the process-wide manager.
func Shared() *Manager {
	return shared
}

// EnsureRoot builds the root loader from the global libraries the first time
// it is called and returns it. globals is only consulted once. When there are
// no global libraries the root is nil and drivers have no parent loader.
func (m *Manager) EnsureRoot(ctx context.Context, globals func(context.Context) []string) *Loader {
	m.once.Do(func() {
		var files []string
		if globals != nil {
			files = globals(ctx)
		}
		if len(files) == 0 {
			logging.Debug(ctx, "no global libraries, drivers use the platform loader")
			return
		}
		root := &Loader{id: uuid.NewString(), owner: "root", files: slices.Clone(files), table: m.table}
		m.root.Store(root)
		logging.Infow(ctx, "root loader created", "loader", root.id, "files", len(files))
	})
	return m.root.Load()
}

// Root returns the root loader, or nil if EnsureRoot has not created one.
func (m *Manager) Root() *Loader {
	return m.root.Load()
}

// BuildIsolated returns a new loader for owner over files, chained to the
// root loader.
func (m *Manager) BuildIsolated(owner string, files []string) *Loader {
	return &Loader{
		id:     uuid.NewString(),
		owner:  owner,
		files:  slices.Clone(files),
		parent: m.root.Load(),
		table:  m.table,
	}
}
