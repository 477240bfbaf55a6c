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

package kiln

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBuildFile = `
meta: package.json
include:
  npmInclude:
    js: npm-js.json
data:
  that:
    name: bundle
groups:
  concat:
    options:
      separator: ";"
    bundle:
      src: <%= npmInclude.js %>
      dest: dist/js/<%= that.name %>.js
    vendor:
      src: [a.css, b.css]
      dest: dist/css/vendor.css
  clean:
    dist: dist
tasks:
  dist-js: [concat:bundle]
  single: clean
watch:
  js:
    files: [src/js/**/*.js, "!src/js/develop.js"]
    tasks: dist-js
serve:
  port: 3000
  base: dist
`

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, ConfigFile)
	require.NoError(t, os.WriteFile(f, []byte(testBuildFile), 0644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "package.json"),
		[]byte(`{"name": "skeleton", "license": "MIT"}`), 0644,
	))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "npm-js.json"),
		[]byte("// scripts\n[\"a.js\", \"b.js\"]\n"), 0644,
	))

	c, errs := ReadConfig(f)
	require.Nil(t, errs)

	require.Len(t, c.Groups, 2)
	assert.Equal(t, "concat", c.Groups[0].Name)
	assert.Equal(t, []string{"bundle", "vendor"}, c.Groups[0].Targets)
	assert.Equal(t, []string{"dist"}, c.Group("clean").Targets)
	assert.Nil(t, c.Group("less"))

	assert.Equal(t, map[string][]string{
		"dist-js": {"concat:bundle"},
		"single":  {"clean"},
	}, c.Tasks)

	require.Len(t, c.Watch, 1)
	assert.Equal(t, &WatchRule{
		Name:  "js",
		Files: []string{"src/js/**/*.js", "!src/js/develop.js"},
		Tasks: []string{"dist-js"},
	}, c.Watch[0])
	assert.Equal(t, &ServeConfig{Port: 3000, Base: "dist"}, c.Serve)

	store := NewStore(c.Root)
	v, ok := store.Get("pkg.license")
	require.True(t, ok)
	assert.Equal(t, "MIT", v)
	v, ok = store.Get("npmInclude.js")
	require.True(t, ok)
	assert.Equal(t, []any{"a.js", "b.js"}, v)
	v, ok = store.Get("concat.options.separator")
	require.True(t, ok)
	assert.Equal(t, ";", v)
}

func TestParseConfigErrors(t *testing.T) {
	for _, test := range []string{
		"groups: [a, b]\n",
		"groups:\n  concat: [a]\n",
		"tasks:\n  a:\n    b: c\n",
		"meta: missing.json\n",
		"include:\n  npmInclude:\n    js: missing.json\n",
		"data:\n  concat: 1\ngroups:\n  concat:\n    a: b\n",
	} {
		_, errs := ParseConfig(filepath.Join(t.TempDir(), ConfigFile), []byte(test))
		assert.NotEmpty(t, errs, test)
	}
}
