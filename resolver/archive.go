package resolver

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dpup/driverhub/logging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// ExtractDir is the directory under the drivers home that archives are
// expanded into.
const ExtractDir = ".extracted"

// manifest lists the extracted members of an archive, one per line. Its
// presence marks an extraction as complete.
const manifest = ".members"

// expandArchives replaces every zip archive in files with its matching
// members. An archive that cannot be expanded contributes nothing.
func (r *Resolver) expandArchives(ctx context.Context, files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f), ".zip") {
			out = append(out, f)
			continue
		}
		members, err := r.extract(f)
		if err != nil {
			logging.Warnw(ctx, "failed to expand library archive", "path", f, "error", err)
			continue
		}
		logging.Debugw(ctx, "expanded library archive", "path", f, "members", len(members))
		out = append(out, members...)
	}
	return out
}

// extract expands archive into ExtractDir/<digest> and returns the extracted
// member paths. A previous complete extraction of the same content is reused.
func (r *Resolver) extract(archive string) ([]string, error) {
	f, err := r.fs.Open(archive)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detect type: %w", err)
	}
	if !isZip(mt) {
		return nil, fmt.Errorf("not a zip archive: %s", mt.String())
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	dest := filepath.Join(r.home, ExtractDir, hex.EncodeToString(h.Sum(nil))[:16])

	if members, ok := r.readManifest(dest); ok {
		return members, nil
	}

	zr, err := zip.NewReader(f, size)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	var members []string
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !r.isArchiveMember(zf.Name) {
			continue
		}
		target, err := memberPath(dest, zf.Name)
		if err != nil {
			return nil, err
		}
		if err := r.writeMember(zf, target); err != nil {
			return nil, err
		}
		members = append(members, target)
	}

	rel := make([]string, 0, len(members))
	for _, m := range members {
		rel = append(rel, strings.TrimPrefix(m, dest+string(filepath.Separator)))
	}
	if err := afero.WriteFile(r.fs, filepath.Join(dest, manifest), []byte(strings.Join(rel, "\n")), 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return members, nil
}

// isZip also accepts formats built on zip, e.g. an archive whose first entry
// makes it sniff as a jar.
func isZip(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func (r *Resolver) isArchiveMember(name string) bool {
	for _, p := range r.archiveMembers {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
		// "**/*.jar" should also match top level entries.
		if strings.HasPrefix(p, "**/") {
			if ok, _ := doublestar.Match(strings.TrimPrefix(p, "**/"), path.Base(name)); ok {
				return true
			}
		}
	}
	return false
}

func (r *Resolver) readManifest(dest string) ([]string, bool) {
	data, err := afero.ReadFile(r.fs, filepath.Join(dest, manifest))
	if err != nil {
		return nil, false
	}
	var members []string
	for _, rel := range strings.Split(string(data), "\n") {
		if rel == "" {
			continue
		}
		p := filepath.Join(dest, rel)
		if ok, _ := afero.Exists(r.fs, p); !ok {
			return nil, false
		}
		members = append(members, p)
	}
	return members, true
}

func (r *Resolver) writeMember(zf *zip.File, target string) error {
	if err := r.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare file %s: %w", target, err)
	}
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", zf.Name, err)
	}
	defer rc.Close()
	out, err := r.fs.OpenFile(target, osCreateFlags, 0o644)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("copy file %s: %w", target, err)
	}
	return out.Close()
}

// memberPath joins name onto dest, rejecting entries that escape it.
func memberPath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal zip entry %q", name)
	}
	return target, nil
}
