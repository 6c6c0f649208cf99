package resolver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dpup/driverhub/dependency"
	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/library"
	"github.com/dpup/driverhub/logging"
	"github.com/spf13/afero"
)

const osCreateFlags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC

// Mirror materializes libraries by copying them from local mirror directories
// into the drivers home. A library's path, with "{version}" substituted, is
// looked up relative to each mirror in turn.
type Mirror struct {
	fs      afero.Fs
	home    string
	sources []string
}

// NewMirror returns a downloader copying from sources into home.
func NewMirror(fs afero.Fs, home string, sources ...string) *Mirror {
	return &Mirror{fs: fs, home: home, sources: sources}
}

func (m *Mirror) Fetch(ctx context.Context, req *FetchRequest) (map[string]string, error) {
	out := map[string]string{}
	for _, root := range req.Forest {
		var err error
		dependency.Walk(root, func(n *dependency.Node) {
			if err != nil || !n.Library.IsDownloadable() {
				return
			}
			if _, done := out[n.Library.Key()]; done {
				return
			}
			var p string
			p, err = m.materialize(ctx, n.Library.LocalPath(""), req.Force)
			if err != nil {
				err = errors.WrapPrefix(err, n.Library.String(), 0)
				return
			}
			out[n.Library.Key()] = p
		})
		if err != nil {
			return nil, err
		}
	}
	for _, src := range req.Sources {
		p, err := m.materialize(ctx, src, req.Force)
		if err != nil {
			return nil, errors.WrapPrefix(err, src, 0)
		}
		out["source:"+src] = p
	}
	return out, nil
}

func (m *Mirror) materialize(ctx context.Context, rel string, force bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if filepath.IsAbs(rel) {
		if ok, _ := afero.Exists(m.fs, rel); ok {
			return rel, nil
		}
		return "", errors.Mark(ErrLibraryNotFound, 0)
	}

	dest := filepath.Join(m.home, rel)
	if !force {
		if ok, _ := afero.Exists(m.fs, dest); ok {
			return dest, nil
		}
	}
	for _, dir := range m.sources {
		src := filepath.Join(dir, rel)
		if ok, _ := afero.Exists(m.fs, src); !ok {
			continue
		}
		if err := m.copy(src, dest); err != nil {
			return "", err
		}
		logging.Debugw(ctx, "copied library from mirror", "from", src, "to", dest)
		return dest, nil
	}
	return "", errors.Mark(ErrLibraryNotFound, 0)
}

// copy writes src into a temp file next to dest and renames it into place,
// so an interrupted copy never leaves a partial library at dest.
func (m *Mirror) copy(src, dest string) error {
	in, err := m.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := m.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := afero.TempFile(m.fs, filepath.Dir(dest), ".mirror-*.tmp")
	if err != nil {
		return errors.WrapPrefix(err, "create temp file", 0)
	}
	tmpPath := tmp.Name()
	defer func() { _ = m.fs.Remove(tmpPath) }()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return errors.WrapPrefix(err, "write temp file", 0)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapPrefix(err, "close temp file", 0)
	}
	if err := m.fs.Rename(tmpPath, dest); err != nil {
		return errors.WrapPrefix(err, "finalize library", 0)
	}
	return nil
}

// Versions lists the versions of lib present in any mirror. Only libraries
// whose path contains "{version}" can be listed.
func (m *Mirror) Versions(ctx context.Context, lib *library.Library) ([]string, error) {
	rel := filepath.ToSlash(lib.Path())
	if !strings.Contains(rel, "{version}") || filepath.IsAbs(lib.Path()) {
		return nil, nil
	}
	pattern := strings.ReplaceAll(rel, "{version}", "*")
	extract := regexp.MustCompile("^" + strings.ReplaceAll(regexp.QuoteMeta(rel), `\{version\}`, `([^/]+)`) + "$")

	seen := map[string]bool{}
	var versions []string
	for _, dir := range m.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(m.fs, dir)), pattern)
		if err != nil {
			continue
		}
		for _, match := range matches {
			sub := extract.FindStringSubmatch(match)
			if sub == nil || seen[sub[1]] {
				continue
			}
			seen[sub[1]] = true
			versions = append(versions, sub[1])
		}
	}
	return versions, nil
}
