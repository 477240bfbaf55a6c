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
	"path"
	"path/filepath"
	"strings"
)

// absPath makes p absolute. Relative paths are taken under dir.
func absPath(dir, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// relPath returns p relative to dir in slash form. It returns p unchanged
// (in slash form) if p cannot be made relative.
func relPath(dir, p string) string {
	if !filepath.IsAbs(p) {
		return path.Clean(filepath.ToSlash(p))
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func isGlob(p string) bool { return strings.ContainsAny(p, "*?[{") }

// substringNegation returns name for negations of the shape **/name/**.
// Such a negation excludes every path that contains name anywhere.
func substringNegation(p string) (string, bool) {
	const pre, post = "**/", "/**"
	if !strings.HasPrefix(p, pre) || !strings.HasSuffix(p, post) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(p, pre), post)
	if name == "" || isGlob(name) || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
