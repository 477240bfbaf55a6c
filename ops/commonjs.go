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
	"fmt"
	"path/filepath"
	"strings"

	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

const commonJSBanner = "// This file is generated by kiln. " +
	"require() it in a CommonJS environment.\n"

func commonJSModule(dest string, srcs []string) (string, error) {
	dir := filepath.Dir(dest)
	var lines []string
	for _, src := range srcs {
		rel, err := filepath.Rel(dir, src)
		if err != nil {
			return "", errcode.Annotatef(err, "relative path of %q", src)
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, ".") {
			rel = "./" + rel
		}
		lines = append(lines, fmt.Sprintf("require('%s')", rel))
	}
	return commonJSBanner + strings.Join(lines, "\n") + "\n", nil
}

// commonJS writes an entry module that requires every source file.
func commonJS(_ context.Context, inv *kiln.Invocation) (*kiln.Result, error) {
	if inv.Dest == "" {
		return nil, errcode.InvalidArgf("commonjs needs a destination")
	}
	s, err := commonJSModule(inv.Dest, inv.Src)
	if err != nil {
		return nil, err
	}
	if err := writeFile(inv.Dest, []byte(s)); err != nil {
		return nil, errcode.Annotatef(err, "write %q", inv.Dest)
	}
	return nil, nil
}
