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

// Package ops provides the capabilities that transform files for kiln
// tasks.
package ops

import (
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

type capability struct {
	kind string
	cap  kiln.Capability
	opts []kiln.OperationOption
}

func capabilities() []*capability {
	return []*capability{
		{kind: "clean", cap: kiln.CapabilityFunc(clean)},
		{kind: "concat", cap: kiln.CapabilityFunc(concat)},
		{kind: "copy", cap: kiln.CapabilityFunc(copyFiles)},
		{kind: "commonjs", cap: kiln.CapabilityFunc(commonJS)},
		{kind: "string-replace", cap: kiln.CapabilityFunc(stringReplace)},
		{kind: "sed", cap: kiln.CapabilityFunc(sed)},
		{kind: "compress", cap: kiln.CapabilityFunc(compress)},
		{kind: "exec", cap: kiln.CapabilityFunc(execCommand)},
		{kind: "less", cap: toolLess, opts: []kiln.OperationOption{
			kiln.RequireInput(),
		}},
		{kind: "uglify", cap: toolUglify},
		{kind: "cssmin", cap: toolCSSMin},
		{kind: "autoprefixer", cap: toolAutoprefixer},
		{kind: "csslint", cap: toolCSSLint},
		{kind: "csscomb", cap: toolCSSComb},
		{kind: "jshint", cap: toolJSHint},
		{kind: "jscs", cap: toolJSCS},
	}
}

// Register registers all capabilities of this package.
func Register(reg *kiln.Registry) error {
	for _, c := range capabilities() {
		if err := reg.Register(c.kind, c.cap, c.opts...); err != nil {
			return errcode.Annotatef(err, "register %q", c.kind)
		}
	}
	return nil
}

// decodeOptions decodes the option bag of an invocation into v.
func decodeOptions(inv *kiln.Invocation, v any) error {
	if err := mapstructure.WeakDecode(inv.Options, v); err != nil {
		return errcode.Annotatef(err, "decode options of %q", inv.Task)
	}
	return nil
}

func prepareOut(p string) error {
	return os.MkdirAll(filepath.Dir(p), 0755)
}

func writeFile(p string, bs []byte) error {
	if err := prepareOut(p); err != nil {
		return errcode.Annotatef(err, "prepare output %q", p)
	}
	return os.WriteFile(p, bs, 0644)
}

// outputOf returns where a source of a mapping is written to: the mapping's
// destination for single sources, a file of the same name in the
// destination for multiple sources, and the source itself when there is
// no destination.
func outputOf(m *kiln.FileMapping, src string) string {
	if m.Dest == "" {
		return src
	}
	if len(m.Src) == 1 {
		return m.Dest
	}
	return filepath.Join(m.Dest, filepath.Base(src))
}
