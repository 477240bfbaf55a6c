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
	"context"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/osutil"
)

// Directories that are never watched.
var ignoredDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".cache":       true,
}

func addWatchDirs(watcher *fsnotify.Watcher, root string, skip map[string]bool) error {
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && (ignoredDirs[d.Name()] || skip[p]) {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	}
	return filepath.WalkDir(root, walk)
}

// WatchFiles feeds file changes under the work dir into the watcher until
// the context is canceled. Directories listed in skip, relative to the
// work dir, are not watched; the output directory usually is one of them.
func (w *Watcher) WatchFiles(ctx context.Context, skip []string) error {
	root := w.b.WorkDir()
	skipDirs := make(map[string]bool)
	for _, d := range skip {
		skipDirs[absPath(root, d)] = true
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errcode.Annotate(err, "create file watcher")
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root, skipDirs); err != nil {
		return errcode.Annotate(err, "watch directories")
	}
	w.log.Info("watching", "dir", root)

	stats := newStatCache()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if isDir, _ := osutil.IsDir(event.Name); isDir {
					name := filepath.Base(event.Name)
					if ignoredDirs[name] || skipDirs[event.Name] {
						continue
					}
					if err := addWatchDirs(watcher, event.Name, skipDirs); err != nil {
						w.log.Warn("watch new directory", "dir", event.Name, "err", err)
					}
					continue
				}
			}
			if event.Op == fsnotify.Chmod || !stats.changed(event.Name) {
				continue
			}
			if !w.notify(ctx, event.Name) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("file watcher", "err", err)
		}
	}
}
