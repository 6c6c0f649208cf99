package driver

import (
	"context"
	"slices"
	"sync"

	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/logging"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
)

var (
	// ErrDuplicateDriver is returned when a provider already has a driver
	// with the same id.
	ErrDuplicateDriver = errors.NewC("driver already registered", codes.AlreadyExists)

	// ErrInvalidDriver is returned for drivers without an id.
	ErrInvalidDriver = errors.NewC("invalid driver", codes.InvalidArgument)
)

// Provider groups the drivers of one database type.
type Provider struct {
	id         string
	name       string
	registry   *Registry
	urlBuilder URLBuilder

	mu      sync.RWMutex
	drivers map[string]*Driver
	order   []string
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithURLBuilder sets how the provider builds connection URLs.
func WithURLBuilder(b URLBuilder) ProviderOption {
	return func(p *Provider) { p.urlBuilder = b }
}

func (p *Provider) ID() string          { return p.id }
func (p *Provider) Name() string        { return p.name }
func (p *Provider) Registry() *Registry { return p.registry }

// DefineDriver adds a built-in driver.
func (p *Provider) DefineDriver(def Definition) (*Driver, error) {
	d := newBuiltin(p, def)
	if err := p.AddDriver(d); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDriver returns a new custom driver copied from from, with a generated
// id. It is not added to the provider. A nil from gives an empty driver.
func (p *Provider) CreateDriver(from *Driver) *Driver {
	if from == nil {
		return copyOf(p, uuid.NewString(), &Driver{})
	}
	return copyOf(p, uuid.NewString(), from)
}

// AddDriver adds d to the provider.
func (p *Provider) AddDriver(d *Driver) error {
	if d.id == "" {
		return errors.Mark(ErrInvalidDriver, 0).WithCause(errors.New("driver id is empty"))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drivers == nil {
		p.drivers = map[string]*Driver{}
	}
	if _, ok := p.drivers[d.id]; ok {
		return errors.Mark(ErrDuplicateDriver, 0).WithCause(errors.Errorf("%s:%s", p.id, d.id))
	}
	d.provider = p
	p.drivers[d.id] = d
	p.order = append(p.order, d.id)
	return nil
}

// Driver returns the driver with id, or nil.
func (p *Provider) Driver(id string) *Driver {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.drivers[id]
}

// Drivers returns the provider's drivers in the order they were added.
func (p *Provider) Drivers() []*Driver {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Driver, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.drivers[id])
	}
	return out
}

// RemoveDriver drops d from the provider and resets it. It reports whether d
// was registered.
func (p *Provider) RemoveDriver(d *Driver) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drivers[d.id] != d {
		return false
	}
	delete(p.drivers, d.id)
	p.order = slices.DeleteFunc(p.order, func(id string) bool { return id == d.id })
	d.ResetInstance()
	return true
}

// Registry holds providers and links deprecated drivers to their successors.
type Registry struct {
	runtime *Runtime

	mu        sync.RWMutex
	providers map[string]*Provider
	order     []string
}

// NewRegistry returns a registry whose drivers load with rt.
func NewRegistry(rt *Runtime) *Registry {
	return &Registry{runtime: rt, providers: map[string]*Provider{}}
}

// Runtime returns the collaborators drivers are loaded with.
func (r *Registry) Runtime() *Runtime { return r.runtime }

// AddProvider returns the provider with id, creating it when needed.
func (r *Registry) AddProvider(id, name string, opts ...ProviderOption) *Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[id]; ok {
		return p
	}
	p := &Provider{id: id, name: name, registry: r}
	for _, o := range opts {
		o(p)
	}
	r.providers[id] = p
	r.order = append(r.order, id)
	return p
}

// Provider returns the provider with id, or nil.
func (r *Registry) Provider(id string) *Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id]
}

// Providers returns every provider in the order they were added.
func (r *Registry) Providers() []*Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// Drivers returns every driver of every provider.
func (r *Registry) Drivers() []*Driver {
	var out []*Driver
	for _, p := range r.Providers() {
		out = append(out, p.Drivers()...)
	}
	return out
}

// Init links every replaced driver to the driver replacing it. It is called
// once all drivers are defined and may be called again after changes.
func (r *Registry) Init(ctx context.Context) {
	all := r.Drivers()
	for _, d := range all {
		for _, other := range all {
			if d != other && d.Replaces(other) {
				other.SetReplacedBy(d)
				logging.Debugw(ctx, "driver replaced", "driver", other.String(), "by", d.String())
			}
		}
	}
}

// Driver returns the driver registered under providerID and driverID, or nil.
func (r *Registry) Driver(providerID, driverID string) *Driver {
	p := r.Provider(providerID)
	if p == nil {
		return nil
	}
	return p.Driver(driverID)
}

// FindDriver is Driver, following replacement links to the newest successor.
// Replaced drivers stay registered.
func (r *Registry) FindDriver(providerID, driverID string) *Driver {
	d := r.Driver(providerID, driverID)
	seen := map[*Driver]bool{}
	for d != nil && d.replacedBy != nil && !seen[d] {
		seen[d] = true
		d = d.replacedBy
	}
	return d
}

// RemoveDriver removes d from its provider. Drivers replaced by d lose their
// link.
func (r *Registry) RemoveDriver(d *Driver) bool {
	if d == nil || d.provider == nil || d.provider.registry != r {
		return false
	}
	if !d.provider.RemoveDriver(d) {
		return false
	}
	for _, other := range r.Drivers() {
		if other.replacedBy == d {
			other.replacedBy = nil
		}
	}
	return true
}
