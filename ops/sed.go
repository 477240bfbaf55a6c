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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

type sedOptions struct {
	Path        string   `mapstructure:"path"`
	Pattern     string   `mapstructure:"pattern"`
	Replacement string   `mapstructure:"replacement"`
	Exclude     []string `mapstructure:"exclude"`
	Recursive   bool     `mapstructure:"recursive"`
}

func excluded(rel string, excludes []string) bool {
	for _, ex := range excludes {
		ex = filepath.ToSlash(filepath.Clean(ex))
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
	}
	return false
}

func sedFiles(root string, opts *sedOptions) ([]string, error) {
	var files []string
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p == root {
				return nil
			}
			if !opts.Recursive || excluded(rel, opts.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !excluded(rel, opts.Exclude) {
			files = append(files, p)
		}
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, err
	}
	return files, nil
}

// sed replaces a pattern in all text files under a directory. An empty
// pattern replaces nothing.
func sed(_ context.Context, inv *kiln.Invocation) (*kiln.Result, error) {
	opts := &sedOptions{Path: "."}
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}
	if opts.Pattern == "" {
		log.Info("sed: no pattern, nothing to replace", "task", inv.Task)
		return nil, nil
	}
	re, err := compilePattern(opts.Pattern, "")
	if err != nil {
		return nil, errcode.Annotatef(err, "pattern %q", opts.Pattern)
	}

	root := filepath.Join(inv.Dir, filepath.FromSlash(opts.Path))
	files, err := sedFiles(root, opts)
	if err != nil {
		return nil, errcode.Annotatef(err, "list files in %q", root)
	}

	var changed []any
	for _, f := range files {
		bs, err := os.ReadFile(f)
		if err != nil {
			return nil, errcode.Annotatef(err, "read %q", f)
		}
		if !utf8.Valid(bs) {
			continue
		}
		s := string(bs)
		out := re.ReplaceAllLiteralString(s, opts.Replacement)
		if out == s {
			continue
		}
		info, err := os.Stat(f)
		if err != nil {
			return nil, errcode.Annotatef(err, "stat %q", f)
		}
		if err := os.WriteFile(f, []byte(out), info.Mode().Perm()); err != nil {
			return nil, errcode.Annotatef(err, "write %q", f)
		}
		changed = append(changed, f)
	}
	return &kiln.Result{
		Artifacts: map[string]any{"changed": changed},
	}, nil
}
