// Package dependency expands library references into dependency trees.
//
// Each root becomes one tree. A library reached a second time while expanding
// a root is kept as a duplicate leaf and never expanded again, so cycles
// terminate and diamonds contribute their shared library once.
package dependency

import (
	"context"

	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/library"
	"github.com/dpup/driverhub/logging"
	"google.golang.org/grpc/codes"
)

// ErrMetadata is returned when the dependencies of a library cannot be read.
var ErrMetadata = errors.NewC("library metadata unavailable", codes.Unavailable)

// Source supplies the declared dependencies of a library. Implementations may
// read remote metadata.
type Source interface {
	Dependencies(ctx context.Context, lib *library.Library) ([]*library.Library, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context, lib *library.Library) ([]*library.Library, error)

func (f SourceFunc) Dependencies(ctx context.Context, lib *library.Library) ([]*library.Library, error) {
	return f(ctx, lib)
}

// Declared reads the dependencies a library was constructed with.
var Declared Source = SourceFunc(func(_ context.Context, lib *library.Library) ([]*library.Library, error) {
	return lib.Dependencies(), nil
})

// Node is one library in a dependency tree.
type Node struct {
	Library   *library.Library
	Children  []*Node
	Duplicate bool
}

// Builder expands roots into dependency trees.
type Builder struct {
	source   Source
	platform library.Platform
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPlatform filters libraries against p instead of the local platform.
func WithPlatform(p library.Platform) BuilderOption {
	return func(b *Builder) { b.platform = p }
}

// NewBuilder returns a builder reading dependencies from src, or from the
// declared dependencies when src is nil.
func NewBuilder(src Source, opts ...BuilderOption) *Builder {
	if src == nil {
		src = Declared
	}
	b := &Builder{source: src, platform: library.LocalPlatform()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build returns one tree per usable root, in root order. Disabled libraries
// and libraries not supported on the platform are skipped at every level.
func (b *Builder) Build(ctx context.Context, roots []*library.Library) ([]*Node, error) {
	var forest []*Node
	for _, root := range roots {
		if !b.usable(root) {
			continue
		}
		seen := map[string]bool{}
		n, err := b.expand(ctx, root, seen)
		if err != nil {
			return nil, err
		}
		forest = append(forest, n)
	}
	return forest, nil
}

func (b *Builder) expand(ctx context.Context, lib *library.Library, seen map[string]bool) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := lib.Key()
	if seen[key] {
		return &Node{Library: lib, Duplicate: true}, nil
	}
	seen[key] = true

	deps, err := b.source.Dependencies(ctx, lib)
	if err != nil {
		logging.Warnw(ctx, "failed to read library dependencies", "library", lib.String(), "error", err)
		return nil, errors.Mark(ErrMetadata, 0).WithCause(err)
	}

	n := &Node{Library: lib}
	for _, dep := range deps {
		if !b.usable(dep) {
			continue
		}
		child, err := b.expand(ctx, dep, seen)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func (b *Builder) usable(lib *library.Library) bool {
	return lib != nil && !lib.IsDisabled() && lib.IsSupportedBy(b.platform)
}

// Flatten lists the libraries of a tree in pre-order, skipping duplicates.
func Flatten(n *Node) []*library.Library {
	var out []*library.Library
	Walk(n, func(node *Node) {
		out = append(out, node.Library)
	})
	return out
}

// Walk calls fn for every non-duplicate node of the tree in pre-order.
func Walk(n *Node, fn func(*Node)) {
	if n == nil || n.Duplicate {
		return
	}
	fn(n)
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
