package fsys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashpect/webserv/pkg/errs"
)

func TestOS_ReadFileAndExists(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(name, []byte("A"), 0o644))

	var fsys OS
	b, err := fsys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "A", string(b))
	assert.True(t, fsys.Exists(name))
	assert.False(t, fsys.Exists(dir), "directories are not servable files")

	require.NoError(t, os.Remove(name))
	assert.False(t, fsys.Exists(name))
	_, err = fsys.ReadFile(name)
	assert.True(t, errs.Is(err, errs.NotFound))

	_, err = fsys.Stat(name)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestJoin(t *testing.T) {
	cases := []struct {
		prefix, url, want string
		ok                bool
	}{
		{"/", "/index.html", "/srv/index.html", true},
		{"/", "/a/b.css", "/srv/a/b.css", true},
		{"/static", "/static/app.js", "/srv/app.js", true},
		{"/static/", "/static/img/x.png", "/srv/img/x.png", true},
		{"/", "/", "/srv", true},
		{"/", "/../etc/passwd", "", false},
		{"/", "/a/../../etc", "", false},
		{"/", "/a\x00b", "", false},
	}
	for _, tc := range cases {
		got, ok := Join("/srv", tc.prefix, tc.url)
		assert.Equal(t, tc.ok, ok, tc.url)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.url)
		}
	}
}

func TestOS_WriteAndRemove(t *testing.T) {
	name := filepath.Join(t.TempDir(), "up.txt")
	var fsys OS

	require.NoError(t, fsys.WriteFile(name, []byte("payload")))
	assert.True(t, fsys.Exists(name))

	require.NoError(t, fsys.Remove(name))
	err := fsys.Remove(name)
	assert.True(t, errs.Is(err, errs.NotFound))
}
