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
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

type concatOptions struct {
	Banner       string `mapstructure:"banner"`
	Footer       string `mapstructure:"footer"`
	Separator    string `mapstructure:"separator"`
	StripBanners bool   `mapstructure:"stripBanners"`
}

// stripBanner removes a leading block comment, unless it is a /*! comment
// that is meant to be kept.
func stripBanner(s string) string {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "/*!") {
		return s
	}
	end := strings.Index(trimmed, "*/")
	if end < 0 {
		return s
	}
	return strings.TrimLeft(trimmed[end+2:], "\r\n")
}

func concatFiles(files []string, opts *concatOptions) ([]byte, []string, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(opts.Banner)

	var used []string
	for _, f := range files {
		bs, err := os.ReadFile(f)
		if err != nil {
			if os.IsNotExist(err) {
				log.Warn("source file not found", "file", f)
				continue
			}
			return nil, nil, errcode.Annotatef(err, "read %q", f)
		}
		s := string(bs)
		if opts.StripBanners {
			s = stripBanner(s)
		}
		if len(used) > 0 {
			buf.WriteString(opts.Separator)
		}
		buf.WriteString(s)
		used = append(used, f)
	}

	buf.WriteString(opts.Footer)
	return buf.Bytes(), used, nil
}

func concat(_ context.Context, inv *kiln.Invocation) (*kiln.Result, error) {
	opts := &concatOptions{Separator: "\n"}
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}

	var files []any
	for _, m := range inv.Files {
		if m.Dest == "" {
			return nil, errcode.InvalidArgf("concat needs a destination")
		}
		bs, used, err := concatFiles(m.Src, opts)
		if err != nil {
			return nil, err
		}
		if err := writeFile(m.Dest, bs); err != nil {
			return nil, errcode.Annotatef(err, "write %q", m.Dest)
		}
		for _, f := range used {
			files = append(files, f)
		}
	}
	return &kiln.Result{
		Artifacts: map[string]any{"files": files},
	}, nil
}
