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
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

type compressOptions struct {
	Archive string `mapstructure:"archive"`
	Mode    string `mapstructure:"mode"`
	Level   int    `mapstructure:"level"`
}

type zipEntry struct {
	name string
	file string
}

// zipEntries lists the archive entries of the mappings. Entry names are
// output paths relative to dir.
func zipEntries(dir string, files []*kiln.FileMapping) ([]*zipEntry, error) {
	var entries []*zipEntry
	seen := make(map[string]bool)
	for _, m := range files {
		for _, src := range m.Src {
			rel, err := filepath.Rel(dir, outputOf(m, src))
			if err != nil {
				return nil, errcode.Annotatef(err, "entry name of %q", src)
			}
			name := filepath.ToSlash(rel)
			if seen[name] {
				continue
			}
			seen[name] = true
			entries = append(entries, &zipEntry{name: name, file: src})
		}
	}
	return entries, nil
}

func addZipEntry(w *zip.Writer, e *zipEntry) error {
	f, err := os.Open(e.file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	h, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	h.Name = e.name
	h.Method = zip.Deflate

	out, err := w.CreateHeader(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, f)
	return err
}

func writeZip(archive string, level int, entries []*zipEntry) error {
	if err := prepareOut(archive); err != nil {
		return err
	}
	f, err := os.Create(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (
		io.WriteCloser, error,
	) {
		return flate.NewWriter(out, level)
	})
	for _, e := range entries {
		if err := addZipEntry(w, e); err != nil {
			return errcode.Annotatef(err, "add %q", e.name)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

// compress writes the file mappings into a zip archive.
func compress(_ context.Context, inv *kiln.Invocation) (*kiln.Result, error) {
	opts := &compressOptions{Mode: "zip", Level: flate.BestCompression}
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}
	if opts.Mode != "zip" {
		return nil, errcode.InvalidArgf("unsupported archive mode %q", opts.Mode)
	}
	if opts.Archive == "" {
		return nil, errcode.InvalidArgf("archive path missing")
	}
	if opts.Level < flate.HuffmanOnly || opts.Level > flate.BestCompression {
		return nil, errcode.InvalidArgf("invalid level %d", opts.Level)
	}

	entries, err := zipEntries(inv.Dir, inv.Files)
	if err != nil {
		return nil, err
	}
	archive := opts.Archive
	if !filepath.IsAbs(archive) {
		archive = filepath.Join(inv.Dir, archive)
	}
	if err := writeZip(archive, opts.Level, entries); err != nil {
		return nil, errcode.Annotatef(err, "write archive %q", archive)
	}
	return &kiln.Result{
		Artifacts: map[string]any{"archive": archive},
	}, nil
}
