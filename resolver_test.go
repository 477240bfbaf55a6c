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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolver(root map[string]any) *Resolver {
	h := &Helpers{
		Now:     time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC),
		Options: map[string]string{"newver": "1.1"},
	}
	return NewResolver(NewStore(root), h)
}

func TestResolve(t *testing.T) {
	r := testResolver(map[string]any{
		"that": map[string]any{"name": "bundle", "version": "1.0"},
		"npmInclude": map[string]any{
			"js": []any{"a.js", "b.js", "c.js"},
		},
		"concat": map[string]any{
			"bundle": map[string]any{
				"src":  "<%= npmInclude.js %>",
				"dest": "dist/js/<%= that.name %>.js",
			},
		},
		"uglify": map[string]any{
			"core": map[string]any{
				"src":  "<%= concat.bundle.dest %>",
				"dest": "dist/js/<%= that.name %>.min.js",
			},
		},
		"list":  "files: <%= npmInclude.js %>",
		"num":   "<%= port %>",
		"port":  3000,
		"text":  "port <%= port %>",
		"plain": "no tokens",
	})

	for _, test := range []struct {
		path string
		want any
	}{
		{"concat.bundle.src", []any{"a.js", "b.js", "c.js"}},
		{"concat.bundle.dest", "dist/js/bundle.js"},
		{"uglify.core.src", "dist/js/bundle.js"},
		{"list", "files: a.js,b.js,c.js"},
		{"num", 3000},
		{"text", "port 3000"},
		{"plain", "no tokens"},
		{"concat.bundle.src.1", "b.js"},
	} {
		got, err := r.Resolve(test.path)
		require.NoError(t, err, test.path)
		assert.Equal(t, test.want, got, test.path)
	}
}

func TestResolveIdempotent(t *testing.T) {
	r := testResolver(map[string]any{
		"a": "<%= b %>-x",
		"b": "<%= c %>",
		"c": "c",
	})
	v1, err := r.Resolve("a")
	require.NoError(t, err)
	v2, err := r.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, "c-x", v1)
	assert.Equal(t, v1, v2)

	again, err := r.ResolveValue(v1)
	require.NoError(t, err)
	assert.Equal(t, v1, again)
}

func TestResolveSeesWrites(t *testing.T) {
	store := NewStore(map[string]any{
		"a": "<%= b %>",
		"b": "old",
	})
	r := NewResolver(store, nil)
	v, err := r.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	require.NoError(t, store.Set("b", "new"))
	v, err = r.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func TestResolveCircular(t *testing.T) {
	r := testResolver(map[string]any{
		"a":    "<%= b %>",
		"b":    "x <%= c %>",
		"c":    "<%= a %>",
		"self": "<%= self %>",
	})

	_, err := r.Resolve("a")
	circular := new(CircularReferenceError)
	require.True(t, errors.As(err, &circular), "got %v", err)
	assert.Equal(t, []string{"a", "b", "c", "a"}, circular.Chain)

	_, err = r.Resolve("self")
	require.True(t, errors.As(err, &circular), "got %v", err)
	assert.Equal(t, []string{"self", "self"}, circular.Chain)
}

func TestResolveUnresolved(t *testing.T) {
	r := testResolver(map[string]any{
		"a": "<%= missing.path %>",
	})
	_, err := r.Resolve("a")
	unresolved := new(UnresolvedReferenceError)
	require.True(t, errors.As(err, &unresolved), "got %v", err)
	assert.Equal(t, "missing.path", unresolved.Ref)
	assert.Equal(t, "a", unresolved.From)

	_, err = r.Resolve("nothing")
	require.True(t, errors.As(err, &unresolved), "got %v", err)
	assert.Equal(t, "nothing", unresolved.Ref)
}

func TestResolveMapInterpolation(t *testing.T) {
	r := testResolver(map[string]any{
		"m":   map[string]any{"k": "v"},
		"bad": "value: <%= m %>",
		"ok":  "<%= m %>",
	})
	_, err := r.Resolve("bad")
	require.Error(t, err)

	v, err := r.Resolve("ok")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, v)
}

func TestResolveThroughReference(t *testing.T) {
	r := testResolver(map[string]any{
		"alias": "<%= real %>",
		"real":  map[string]any{"name": "x"},
	})
	v, err := r.Resolve("alias.name")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestResolveHelpers(t *testing.T) {
	r := testResolver(map[string]any{
		"year":    "<%= today(\"yyyy\") %>",
		"date":    "<%= today() %>",
		"stamp":   "<%= today('yy/m/d HH:MM:ss') %>",
		"ver":     "v<%= option(\"newver\") %>",
		"missing": "<%= option(\"oldver\") %>",
		"quoted":  "<%= quote(\"1.0.0\") %>",
		"nested":  "<%= quote(option('newver')) %>",
		"unknown": "<%= nope() %>",
	})

	for _, test := range []struct {
		path string
		want string
	}{
		{"year", "2024"},
		{"date", "2024-03-05"},
		{"stamp", "24/3/5 07:08:09"},
		{"ver", "v1.1"},
		{"missing", ""},
		{"quoted", `1\.0\.0`},
		{"nested", `1\.1`},
	} {
		got, err := r.Resolve(test.path)
		require.NoError(t, err, test.path)
		assert.Equal(t, test.want, got, test.path)
	}

	_, err := r.Resolve("unknown")
	require.Error(t, err)
}
