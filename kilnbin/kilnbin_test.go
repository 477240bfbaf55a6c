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

package kilnbin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/otiai10/copy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shanhu.io/kiln"
)

const skeleton = "../testdata/skeleton"

func TestPlanSkeleton(t *testing.T) {
	b, config, err := newBuilder(&buildFlags{
		file: filepath.Join(skeleton, kiln.ConfigFile),
	})
	require.NoError(t, err)
	require.Len(t, config.Watch, 2)
	assert.Equal(t, &kiln.ServeConfig{Port: 3000, Base: "."}, config.Serve)

	plan, err := b.Plan(defaultTask)
	require.NoError(t, err)
	var tasks []string
	for _, inv := range plan {
		tasks = append(tasks, inv.Task)
	}
	assert.Equal(t, []string{
		"clean:dist",
		"less:compileCore",
		"less:compileIE",
		"less:compileVendor",
		"autoprefixer:core",
		"autoprefixer:ie",
		"csscomb:dist",
		"concat:npmCss",
		"concat:vendor",
		"string-replace:vendor",
		"cssmin:minifyCore",
		"cssmin:minifyIE",
		"cssmin:vendorCss",
		"copy:fonts",
		"copy:npm",
		"copy:images",
		"copy:vendor",
		"copy:vendorImages",
		"concat:bundle",
		"uglify:core",
		"commonjs:npm",
	}, tasks)

	dir := b.WorkDir()
	bundle := plan[18]
	assert.Equal(t, []string{
		filepath.Join(dir, "src/js/transition.js"),
		filepath.Join(dir, "src/js/collapse.js"),
		filepath.Join(dir, "src/js/app.js"),
	}, bundle.Src)
	assert.Equal(t, filepath.Join(dir, "dist/js/bundle.js"), bundle.Dest)
	assert.Equal(t, []string{bundle.Dest}, plan[19].Src)
	assert.True(t, plan[20].Deferred)

	prefix := plan[4]
	assert.Equal(t, true, prefix.Options["map"])
	assert.Len(t, prefix.Options["browsers"], 8)
}

func copySkeleton(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, copy.Copy(skeleton, dir))
	return dir
}

func TestBuildSkeleton(t *testing.T) {
	dir := copySkeleton(t)
	b, _, err := newBuilder(&buildFlags{
		file: filepath.Join(dir, kiln.ConfigFile),
	})
	require.NoError(t, err)

	ctx := context.Background()
	for _, task := range []string{"clear", "concat:bundle", "commonjs"} {
		records, err := b.Build(ctx, task)
		require.NoError(t, err, task)
		for _, r := range records {
			assert.Equal(t, kiln.StatusSuccess, r.Status, r.Task)
		}
	}

	assert.FileExists(t, filepath.Join(dir, "dist/vendor/normalize.css"))
	assert.FileExists(t, filepath.Join(dir, "dist/npm/npm-js.json"))

	bs, err := os.ReadFile(filepath.Join(dir, "dist/js/bundle.js"))
	require.NoError(t, err)
	js := string(bs)
	assert.Contains(t, js, " * Skeleton v1.0 (https://example.com/skeleton)")
	assert.Contains(t, js, "// transition\n\n// collapse\n\n// app\n")

	bs, err = os.ReadFile(filepath.Join(dir, "dist/npm/npm-js.js"))
	require.NoError(t, err)
	assert.Contains(t, string(bs), "require('../../src/js/app.js')")
}

func TestChangeVersionNumber(t *testing.T) {
	dir := copySkeleton(t)
	b, _, err := newBuilder(&buildFlags{
		file:   filepath.Join(dir, kiln.ConfigFile),
		oldVer: "1.0.0",
		newVer: "1.1.0",
	})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), "change-version-number")
	require.NoError(t, err)
	bs, err := os.ReadFile(filepath.Join(dir, "package.json"))
	require.NoError(t, err)
	assert.Contains(t, string(bs), `"version": "1.1.0"`)
}

func TestTaskNames(t *testing.T) {
	assert.Equal(t, []string{"default"}, taskNames(nil))
	assert.Equal(t, []string{"dist-js"}, taskNames([]string{"dist-js"}))
}
