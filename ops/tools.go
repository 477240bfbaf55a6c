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
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/copy"
	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/osutil"
)

// toolCall is one run of a node tool binary.
type toolCall struct {
	args []string
	env  []string

	// If not empty, the stdout of the call is written to out. Outputs of
	// calls with the same out file are concatenated in order.
	out string

	// If not empty, copyFrom is copied to copyTo before the call.
	copyFrom string
	copyTo   string
}

type toolArgs func(inv *kiln.Invocation) ([]*toolCall, error)

// tool is a capability that runs a node tool installed in the work
// directory, or found in PATH.
type tool struct {
	bin  string
	args toolArgs
}

func (t *tool) binPath(dir string) string {
	local := filepath.Join(dir, "node_modules", ".bin", t.bin)
	if ok, err := osutil.IsRegular(local); err == nil && ok {
		return local
	}
	return t.bin
}

func (t *tool) Run(ctx context.Context, inv *kiln.Invocation) (
	*kiln.Result, error,
) {
	calls, err := t.args(inv)
	if err != nil {
		return nil, err
	}

	bin := t.binPath(inv.Dir)
	outs := make(map[string]*bytes.Buffer)
	var outOrder []string
	for _, c := range calls {
		if c.copyFrom != "" && c.copyFrom != c.copyTo {
			if err := prepareOut(c.copyTo); err != nil {
				return nil, err
			}
			if err := copy.Copy(c.copyFrom, c.copyTo); err != nil {
				return nil, errcode.Annotatef(err, "copy %q", c.copyFrom)
			}
		}

		j := &execJob{dir: inv.Dir, bin: bin, args: c.args, env: c.env}
		if c.out == "" {
			if err := j.run(ctx); err != nil {
				return nil, err
			}
			continue
		}
		bs, err := j.output(ctx)
		if err != nil {
			return nil, err
		}
		buf, ok := outs[c.out]
		if !ok {
			buf = new(bytes.Buffer)
			outs[c.out] = buf
			outOrder = append(outOrder, c.out)
		}
		buf.Write(bs)
	}

	for _, out := range outOrder {
		if err := writeFile(out, outs[out].Bytes()); err != nil {
			return nil, errcode.Annotatef(err, "write %q", out)
		}
	}
	return nil, nil
}

func needDest(inv *kiln.Invocation, m *kiln.FileMapping) error {
	if m.Dest == "" {
		return errcode.InvalidArgf("%q needs a destination", inv.Task)
	}
	return nil
}

type lessOptions struct {
	StrictMath        bool   `mapstructure:"strictMath"`
	SourceMap         bool   `mapstructure:"sourceMap"`
	SourceMapURL      string `mapstructure:"sourceMapURL"`
	SourceMapFilename string `mapstructure:"sourceMapFilename"`
	OutputSourceFiles bool   `mapstructure:"outputSourceFiles"`
}

func (o *lessOptions) flags(dir string) []string {
	var flags []string
	if o.StrictMath {
		flags = append(flags, "--strict-math=on")
	}
	if o.SourceMap {
		if o.SourceMapFilename != "" {
			f := o.SourceMapFilename
			if !filepath.IsAbs(f) {
				f = filepath.Join(dir, f)
			}
			flags = append(flags, "--source-map="+f)
		} else {
			flags = append(flags, "--source-map")
		}
		if o.SourceMapURL != "" {
			flags = append(flags, "--source-map-url="+o.SourceMapURL)
		}
		if o.OutputSourceFiles {
			flags = append(flags, "--source-map-include-source")
		}
	}
	return flags
}

func lessArgs(inv *kiln.Invocation) ([]*toolCall, error) {
	opts := new(lessOptions)
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}
	flags := opts.flags(inv.Dir)

	var calls []*toolCall
	for _, m := range inv.Files {
		if err := needDest(inv, m); err != nil {
			return nil, err
		}
		if len(m.Src) == 1 {
			args := append(append([]string{}, flags...), m.Src[0], m.Dest)
			calls = append(calls, &toolCall{args: args})
			continue
		}
		for _, src := range m.Src {
			args := append(append([]string{}, flags...), src)
			calls = append(calls, &toolCall{args: args, out: m.Dest})
		}
	}
	return calls, nil
}

type uglifyOptions struct {
	Mangle           bool   `mapstructure:"mangle"`
	Compress         any    `mapstructure:"compress"`
	PreserveComments string `mapstructure:"preserveComments"`
	SourceMap        bool   `mapstructure:"sourceMap"`
}

// compressFlags converts the compress option, a bool or a map of
// compressor options, into uglifyjs flags.
func compressFlags(v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return []string{"-c"}, nil
	case bool:
		if !v {
			return nil, nil
		}
		return []string{"-c"}, nil
	case map[string]any:
		if len(v) == 0 {
			return []string{"-c"}, nil
		}
		var keys []string
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var opts []string
		for _, k := range keys {
			opts = append(opts, fmt.Sprintf("%s=%v", k, v[k]))
		}
		return []string{"-c", strings.Join(opts, ",")}, nil
	}
	return nil, errcode.InvalidArgf("compress is %T, not a bool or a map", v)
}

func uglifyArgs(inv *kiln.Invocation) ([]*toolCall, error) {
	opts := &uglifyOptions{Mangle: true}
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}
	compress, err := compressFlags(opts.Compress)
	if err != nil {
		return nil, errcode.Annotatef(err, "task %q", inv.Task)
	}

	var calls []*toolCall
	for _, m := range inv.Files {
		if err := needDest(inv, m); err != nil {
			return nil, err
		}
		args := append([]string{}, m.Src...)
		args = append(args, "-o", m.Dest)
		args = append(args, compress...)
		if opts.Mangle {
			args = append(args, "-m")
		}
		if opts.PreserveComments != "" {
			args = append(args, "--comments", opts.PreserveComments)
		}
		if opts.SourceMap {
			args = append(args, "--source-map", m.Dest+".map")
		}
		calls = append(calls, &toolCall{args: args})
	}
	return calls, nil
}

type cssMinOptions struct {
	Compatibility       string `mapstructure:"compatibility"`
	KeepSpecialComments string `mapstructure:"keepSpecialComments"`
	Advanced            bool   `mapstructure:"advanced"`
}

func cssMinArgs(inv *kiln.Invocation) ([]*toolCall, error) {
	opts := &cssMinOptions{Advanced: true}
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}

	var calls []*toolCall
	for _, m := range inv.Files {
		if err := needDest(inv, m); err != nil {
			return nil, err
		}
		var args []string
		if opts.Compatibility != "" {
			args = append(args, "--compatibility", opts.Compatibility)
		}
		if opts.KeepSpecialComments != "" {
			args = append(args, "--keep-special-comments", opts.KeepSpecialComments)
		}
		if !opts.Advanced {
			args = append(args, "--skip-advanced")
		}
		args = append(args, "-o", m.Dest)
		args = append(args, m.Src...)
		calls = append(calls, &toolCall{args: args})
	}
	return calls, nil
}

type autoprefixerOptions struct {
	Browsers []string `mapstructure:"browsers"`
	Map      bool     `mapstructure:"map"`
}

func autoprefixerArgs(inv *kiln.Invocation) ([]*toolCall, error) {
	opts := new(autoprefixerOptions)
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}
	var env []string
	if len(opts.Browsers) > 0 {
		env = append(env, "BROWSERSLIST="+strings.Join(opts.Browsers, ", "))
	}

	var calls []*toolCall
	for _, m := range inv.Files {
		for _, src := range m.Src {
			args := []string{"--use", "autoprefixer"}
			if opts.Map {
				args = append(args, "--map")
			}
			if out := outputOf(m, src); out == src {
				args = append(args, "-r", src)
			} else {
				args = append(args, "-o", out, src)
			}
			calls = append(calls, &toolCall{args: args, env: env})
		}
	}
	return calls, nil
}

type lintOptions struct {
	Config string `mapstructure:"config"`
}

// lintArgs builds a single call of a linter that takes its configuration
// file with the given flag.
func lintArgs(configFlag string) toolArgs {
	return func(inv *kiln.Invocation) ([]*toolCall, error) {
		opts := new(lintOptions)
		if err := decodeOptions(inv, opts); err != nil {
			return nil, err
		}
		if len(inv.Src) == 0 {
			return nil, nil
		}
		var args []string
		if opts.Config != "" {
			args = append(args, configFlag+"="+opts.Config)
		}
		args = append(args, inv.Src...)
		return []*toolCall{{args: args}}, nil
	}
}

func cssCombArgs(inv *kiln.Invocation) ([]*toolCall, error) {
	opts := new(lintOptions)
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}

	var calls []*toolCall
	for _, m := range inv.Files {
		for _, src := range m.Src {
			out := outputOf(m, src)
			var args []string
			if opts.Config != "" {
				args = append(args, "-c", opts.Config)
			}
			args = append(args, out)
			calls = append(calls, &toolCall{
				args:     args,
				copyFrom: src,
				copyTo:   out,
			})
		}
	}
	return calls, nil
}

var (
	toolLess         = &tool{bin: "lessc", args: lessArgs}
	toolUglify       = &tool{bin: "uglifyjs", args: uglifyArgs}
	toolCSSMin       = &tool{bin: "cleancss", args: cssMinArgs}
	toolAutoprefixer = &tool{bin: "postcss", args: autoprefixerArgs}
	toolCSSLint      = &tool{bin: "csslint", args: lintArgs("--config")}
	toolCSSComb      = &tool{bin: "csscomb", args: cssCombArgs}
	toolJSHint       = &tool{bin: "jshint", args: lintArgs("--config")}
	toolJSCS         = &tool{bin: "jscs", args: lintArgs("--config")}
)
