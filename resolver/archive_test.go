package resolver

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dpup/driverhub/library"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, fs afero.Fs, p string, entries map[string]string, order ...string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(entries[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, afero.WriteFile(fs, p, buf.Bytes(), 0o644))
}

func TestResolveExpandsZipArchives(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/drivers/first.jar")
	writeZip(t, fs, "/drivers/bundle.zip", map[string]string{
		"lib/a.jar":    "a",
		"b.jar":        "b",
		"README.txt":   "docs",
		"native/x.so":  "so",
		"lib/nested/c": "c",
	}, "lib/a.jar", "b.jar", "README.txt", "native/x.so", "lib/nested/c")

	libs := []*library.Library{
		library.New("first.jar", library.TypeJar),
		library.New("bundle.zip", library.TypeJar),
	}
	r := newResolver(fs, &fakeDownloader{fs: fs})

	res, err := r.Resolve(t.Context(), Request{Libraries: libs})
	require.NoError(t, err)
	require.Len(t, res.Files, 4)
	assert.Equal(t, "/drivers/first.jar", res.Files[0])

	extracted := res.Files[1:]
	for _, p := range extracted {
		assert.True(t, strings.HasPrefix(p, "/drivers/.extracted/"), p)
		ok, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
	assert.Equal(t, []string{"a.jar", "b.jar", "x.so"}, []string{
		filepath.Base(extracted[0]), filepath.Base(extracted[1]), filepath.Base(extracted[2]),
	})
	assert.NotContains(t, res.Files, "/drivers/bundle.zip")

	again, err := r.Resolve(t.Context(), Request{Libraries: libs})
	require.NoError(t, err)
	assert.Equal(t, res.Files, again.Files, "expansion is idempotent")
}

func TestResolveArchiveMemberPatterns(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeZip(t, fs, "/drivers/bundle.zip", map[string]string{
		"a.jar":        "a",
		"plugins/p.so": "p",
	}, "a.jar", "plugins/p.so")

	r := newResolver(fs, &fakeDownloader{fs: fs}, WithArchiveMembers("plugins/*.so"))
	res, err := r.Resolve(t.Context(), Request{Libraries: []*library.Library{library.New("bundle.zip", library.TypeJar)}})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "p.so", filepath.Base(res.Files[0]))
}

func TestResolveBrokenArchiveContributesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/drivers/ok.jar")
	require.NoError(t, afero.WriteFile(fs, "/drivers/broken.zip", []byte("this is not a zip file"), 0o644))

	res, err := newResolver(fs, &fakeDownloader{fs: fs}).Resolve(t.Context(), Request{Libraries: []*library.Library{
		library.New("ok.jar", library.TypeJar),
		library.New("broken.zip", library.TypeJar),
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"/drivers/ok.jar"}, res.Files)
}

func TestResolveRedoesIncompleteExtraction(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeZip(t, fs, "/drivers/bundle.zip", map[string]string{"a.jar": "a"}, "a.jar")
	r := newResolver(fs, &fakeDownloader{fs: fs})
	libs := []*library.Library{library.New("bundle.zip", library.TypeJar)}

	res, err := r.Resolve(t.Context(), Request{Libraries: libs})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	require.NoError(t, fs.Remove(res.Files[0]))
	res, err = r.Resolve(t.Context(), Request{Libraries: libs})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	ok, _ := afero.Exists(fs, res.Files[0])
	assert.True(t, ok)
}

func TestMemberPathRejectsEscapes(t *testing.T) {
	_, err := memberPath("/drivers/.extracted/abc", "../../etc/passwd")
	assert.Error(t, err)

	p, err := memberPath("/drivers/.extracted/abc", "lib/a.jar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/drivers/.extracted/abc", "lib", "a.jar"), p)
}
