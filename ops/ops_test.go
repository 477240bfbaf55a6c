// Copyright (C) 2022  Shanhu Tech Inc.
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, either version 3 of the License, or (at your
// option) any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU Affero General Public License
// for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shanhu.io/kiln"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for f, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	bs, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(bs)
}

func TestRegister(t *testing.T) {
	reg := kiln.NewRegistry()
	require.NoError(t, Register(reg))
	for _, kind := range []string{
		"clean", "concat", "copy", "commonjs", "string-replace", "sed",
		"compress", "exec", "less", "uglify", "cssmin", "autoprefixer",
		"csslint", "csscomb", "jshint", "jscs",
	} {
		assert.True(t, reg.Has(kind), kind)
	}
	require.Error(t, Register(reg), "registering twice")
}

func TestOutputOf(t *testing.T) {
	single := &kiln.FileMapping{Src: []string{"/a/x.css"}, Dest: "/b/y.css"}
	assert.Equal(t, "/b/y.css", outputOf(single, "/a/x.css"))

	multi := &kiln.FileMapping{Src: []string{"/a/x.css", "/a/z.css"}, Dest: "/b"}
	assert.Equal(t, filepath.FromSlash("/b/z.css"), outputOf(multi, "/a/z.css"))

	inPlace := &kiln.FileMapping{Src: []string{"/a/x.css"}}
	assert.Equal(t, "/a/x.css", outputOf(inPlace, "/a/x.css"))
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"dist/js/bundle.js": "x",
		"src/app.js":        "y",
	})
	inv := &kiln.Invocation{
		Task: "clean:dist",
		Dir:  dir,
		Src:  []string{filepath.Join(dir, "dist"), filepath.Join(dir, "none")},
	}
	_, err := clean(context.Background(), inv)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(dir, "dist"))
	assert.FileExists(t, filepath.Join(dir, "src/app.js"))

	inv.Src = []string{dir}
	_, err = clean(context.Background(), inv)
	require.Error(t, err)
	assert.DirExists(t, dir)
}

func TestCopyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/fonts/a.woff":     "a",
		"src/fonts/sub/b.woff": "b",
	})
	inv := &kiln.Invocation{
		Task: "copy:fonts",
		Dir:  dir,
		Files: []*kiln.FileMapping{{
			Src:  []string{filepath.Join(dir, "src/fonts/a.woff")},
			Dest: filepath.Join(dir, "dist/fonts/a.woff"),
		}, {
			Src:  []string{filepath.Join(dir, "src/fonts/sub/b.woff")},
			Dest: filepath.Join(dir, "dist/fonts/sub/b.woff"),
		}},
	}
	_, err := copyFiles(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "a", readFile(t, filepath.Join(dir, "dist/fonts/a.woff")))
	assert.Equal(t, "b", readFile(t, filepath.Join(dir, "dist/fonts/sub/b.woff")))

	inv.Files = []*kiln.FileMapping{{Src: []string{"x"}}}
	_, err = copyFiles(context.Background(), inv)
	require.Error(t, err)
}
