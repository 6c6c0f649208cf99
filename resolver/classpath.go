package resolver

import (
	"context"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dpup/driverhub/library"
	"github.com/dpup/driverhub/logging"
	"github.com/spf13/afero"
)

// Files in a library directory that are put on the class path.
const dirMembers = "*.{jar,zip,so,dll,dylib}"

// classPath assembles the ordered class path and the license files of libs.
func (r *Resolver) classPath(ctx context.Context, libs []*library.Library, resolved map[*library.Library][]library.ResolvedFile) ([]string, []string) {
	var files, licenses []string
	for _, lib := range libs {
		if lib.IsDownloadable() {
			for _, f := range resolved[lib] {
				if f.Type == library.TypeLicense {
					licenses = append(licenses, f.Path)
					continue
				}
				files = append(files, f.Path)
			}
			continue
		}

		p := lib.LocalPath(r.home)
		if lib.Type() == library.TypeLicense {
			licenses = append(licenses, p)
			continue
		}
		info, err := r.fs.Stat(p)
		if err != nil {
			logging.Warnw(ctx, "local library not found", "library", lib.String(), "path", p)
			continue
		}
		if info.IsDir() {
			files = append(files, r.dirMembers(ctx, p)...)
		}
		files = append(files, p)
	}
	files = dedupe(files)
	return dedupe(r.expandArchives(ctx, files)), licenses
}

func (r *Resolver) dirMembers(ctx context.Context, dir string) []string {
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		logging.Warnw(ctx, "failed to list library directory", "path", dir, "error", err)
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match(dirMembers, e.Name()); ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

// dedupe keeps the first occurrence of every path.
func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
