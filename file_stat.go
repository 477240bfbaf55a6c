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
)

// fileStat is the part of a file's state that tells if it has changed.
type fileStat struct {
	Size         int64
	ModTimestamp int64
	Mode         uint32
}

func newFileStat(f string) (*fileStat, error) {
	info, err := os.Lstat(f)
	if err != nil {
		return nil, err
	}
	return &fileStat{
		Size:         info.Size(),
		ModTimestamp: info.ModTime().UnixNano(),
		Mode:         uint32(info.Mode()),
	}, nil
}

func sameFileStat(a, b *fileStat) bool {
	if a == nil || b == nil {
		return false
	}
	same := a.Size == b.Size
	same = same && a.ModTimestamp == b.ModTimestamp
	same = same && a.Mode == b.Mode
	return same
}

// statCache remembers the last seen state of files, so that events that
// do not change a file can be dropped.
type statCache struct {
	m map[string]*fileStat
}

func newStatCache() *statCache {
	return &statCache{m: make(map[string]*fileStat)}
}

// changed updates the cache and reports if f is different from the last
// time it was seen. A file that cannot be read, such as a removed file,
// is always a change.
func (c *statCache) changed(f string) bool {
	cur, err := newFileStat(f)
	if err != nil {
		delete(c.m, f)
		return true
	}
	last := c.m[f]
	c.m[f] = cur
	return !sameFileStat(last, cur)
}
