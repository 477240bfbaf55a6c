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
	"regexp"
	"strings"

	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

type replacement struct {
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
	Flags       string `mapstructure:"flags"`
}

type replaceOptions struct {
	Replacements []*replacement `mapstructure:"replacements"`
}

// compilePattern compiles a pattern with JavaScript style flags. Only the
// i, m and s flags change the pattern; matches are always replaced
// globally.
func compilePattern(pattern, flags string) (*regexp.Regexp, error) {
	var prefix string
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			prefix += string(f)
		case 'g':
		default:
			return nil, errcode.InvalidArgf("unknown pattern flag %q", f)
		}
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}
	return regexp.Compile(pattern)
}

type replacer struct {
	re   *regexp.Regexp
	with string
}

func newReplacers(rs []*replacement) ([]*replacer, error) {
	var ret []*replacer
	for _, r := range rs {
		re, err := compilePattern(r.Pattern, r.Flags)
		if err != nil {
			return nil, errcode.Annotatef(err, "pattern %q", r.Pattern)
		}
		ret = append(ret, &replacer{re: re, with: jsReplacement(r.Replacement)})
	}
	return ret, nil
}

// jsReplacement converts a JavaScript replacement string into the
// template syntax of regexp. $n and $& refer to groups, $$ is a dollar
// sign, and any other $ is kept as is.
func jsReplacement(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' {
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			sb.WriteString("$$")
			continue
		}
		switch next := s[i+1]; {
		case next == '$':
			sb.WriteString("$$")
			i++
		case next == '&':
			sb.WriteString("${0}")
			i++
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			sb.WriteString("${" + s[i+1:j] + "}")
			i = j - 1
		default:
			sb.WriteString("$$")
		}
	}
	return sb.String()
}

func replaceAll(s string, rs []*replacer) string {
	for _, r := range rs {
		s = r.re.ReplaceAllString(s, r.with)
	}
	return s
}

// stringReplace applies regular expression replacements to each source.
// Sources without a destination are rewritten in place.
func stringReplace(_ context.Context, inv *kiln.Invocation) (
	*kiln.Result, error,
) {
	opts := new(replaceOptions)
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}
	rs, err := newReplacers(opts.Replacements)
	if err != nil {
		return nil, err
	}

	for _, m := range inv.Files {
		for _, src := range m.Src {
			bs, err := os.ReadFile(src)
			if err != nil {
				return nil, errcode.Annotatef(err, "read %q", src)
			}
			out := outputOf(m, src)
			if err := writeFile(out, []byte(replaceAll(string(bs), rs))); err != nil {
				return nil, errcode.Annotatef(err, "write %q", out)
			}
		}
	}
	return nil, nil
}
