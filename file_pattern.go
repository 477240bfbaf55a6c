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
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/go-viper/mapstructure/v2"
	"shanhu.io/misc/errcode"
)

// FileMapping maps a list of source files to a destination.
type FileMapping struct {
	Src  []string
	Dest string
}

// ExpandRule is the structured form of a file pattern.
type ExpandRule struct {
	Expand  bool   `mapstructure:"expand"`
	Cwd     string `mapstructure:"cwd"`
	Src     any    `mapstructure:"src"`
	Dest    string `mapstructure:"dest"`
	Flatten bool   `mapstructure:"flatten"`
	Ext     string `mapstructure:"ext"`
}

// patternList flattens a pattern value (a string or nested lists of
// strings) into a list. Empty patterns are dropped.
func patternList(v any) ([]string, error) {
	var ret []string
	var add func(v any) error
	add = func(v any) error {
		switch v := v.(type) {
		case nil:
		case string:
			if v != "" {
				ret = append(ret, v)
			}
		case []string:
			for _, s := range v {
				if s != "" {
					ret = append(ret, s)
				}
			}
		case []any:
			for _, item := range v {
				if err := add(item); err != nil {
					return err
				}
			}
		default:
			return errcode.InvalidArgf("file pattern is %T, not a string", v)
		}
		return nil
	}
	if err := add(v); err != nil {
		return nil, err
	}
	return ret, nil
}

func matchNegation(negs []string, rel string) bool {
	for _, n := range negs {
		if name, ok := substringNegation(n); ok {
			if strings.Contains(rel, name) {
				return true
			}
			continue
		}
		matched, err := doublestar.Match(n, rel)
		if err != nil {
			log.Warnf("bad negation pattern: %q: %s", n, err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

func globFiles(dir, pattern string) ([]string, error) {
	pattern = path.Clean(filepath.ToSlash(pattern))
	base, rest := doublestar.SplitPattern(pattern)
	root := absPath(dir, base)

	matches, err := doublestar.Glob(
		os.DirFS(root), rest, doublestar.WithFilesOnly(),
	)
	if err != nil {
		return nil, errcode.Annotatef(err, "glob %q", pattern)
	}
	sort.Strings(matches)

	var ret []string
	for _, m := range matches {
		ret = append(ret, path.Join(base, m))
	}
	return ret, nil
}

// expandRel expands the patterns under dir. Absolute patterns are taken
// relative to dir first, so matches are always relative to dir.
func expandRel(patterns []string, dir string) ([]string, error) {
	var files []string
	var negs []string
	seen := make(map[string]bool)

	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			negs = append(negs, relPath(dir, strings.TrimPrefix(p, "!")))
			continue
		}

		p = relPath(dir, p)
		var matches []string
		if isGlob(p) {
			m, err := globFiles(dir, p)
			if err != nil {
				return nil, err
			}
			matches = m
		} else {
			matches = []string{p}
		}

		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	if len(negs) == 0 {
		return files, nil
	}
	var ret []string
	for _, f := range files {
		if !matchNegation(negs, f) {
			ret = append(ret, f)
		}
	}
	return ret, nil
}

// Expand expands a list of file patterns under cwd into absolute paths.
// Literal paths are passed through without checking if they exist.
// Negations are applied after all positive patterns.
func Expand(patterns []string, cwd string) ([]string, error) {
	rels, err := expandRel(patterns, cwd)
	if err != nil {
		return nil, err
	}
	var ret []string
	for _, rel := range rels {
		ret = append(ret, absPath(cwd, rel))
	}
	return ret, nil
}

func decodeExpandRule(v any) (*ExpandRule, error) {
	rule := new(ExpandRule)
	if err := mapstructure.WeakDecode(v, rule); err != nil {
		return nil, errcode.Annotate(err, "decode file rule")
	}
	return rule, nil
}

func (r *ExpandRule) destName(rel string) string {
	name := rel
	if r.Flatten {
		name = path.Base(rel)
	}
	if r.Ext != "" {
		name = strings.TrimSuffix(name, path.Ext(name)) + r.Ext
	}
	return path.Join(r.Dest, name)
}

// mappings expands the rule under cwd.
func (r *ExpandRule) mappings(cwd string) ([]*FileMapping, error) {
	patterns, err := patternList(r.Src)
	if err != nil {
		return nil, err
	}
	base := absPath(cwd, r.Cwd)

	if !r.Expand {
		files, err := Expand(patterns, base)
		if err != nil {
			return nil, err
		}
		m := &FileMapping{Src: files}
		if r.Dest != "" {
			m.Dest = absPath(cwd, r.Dest)
		}
		return []*FileMapping{m}, nil
	}

	rels, err := expandRel(patterns, base)
	if err != nil {
		return nil, err
	}
	var ret []*FileMapping
	inPlace := r.Dest == "" && !r.Flatten && r.Ext == ""
	for _, rel := range rels {
		m := &FileMapping{Src: []string{absPath(base, rel)}}
		if !inPlace {
			m.Dest = absPath(cwd, r.destName(rel))
		}
		ret = append(ret, m)
	}
	return ret, nil
}

// Matcher checks single paths against a pattern list, with the same
// semantics as Expand.
type Matcher struct {
	cwd  string
	pos  []string
	negs []string
}

// NewMatcher creates a matcher for the patterns under cwd.
func NewMatcher(patterns []string, cwd string) *Matcher {
	m := &Matcher{cwd: cwd}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "!") {
			m.negs = append(m.negs, relPath(cwd, strings.TrimPrefix(p, "!")))
		} else {
			m.pos = append(m.pos, relPath(cwd, p))
		}
	}
	return m
}

// Match checks if p, absolute or relative to the matcher's directory,
// is selected by the patterns.
func (m *Matcher) Match(p string) bool {
	rel := relPath(m.cwd, p)
	if matchNegation(m.negs, rel) {
		return false
	}
	for _, pat := range m.pos {
		if !isGlob(pat) {
			if pat == rel {
				return true
			}
			continue
		}
		matched, err := doublestar.Match(pat, rel)
		if err != nil {
			log.Warnf("bad pattern: %q: %s", pat, err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
