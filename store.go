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
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"
	"shanhu.io/misc/errcode"
)

// Store holds the raw, unresolved configuration tree. Values are only
// changed through Set, which is how capability artifacts are written back.
type Store struct {
	root    map[string]any
	version uint64
}

// NewStore creates a store that owns the given tree.
func NewStore(root map[string]any) *Store {
	if root == nil {
		root = make(map[string]any)
	}
	return &Store{root: root}
}

// Version returns a counter that increases on every write.
func (s *Store) Version() uint64 { return s.version }

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, ".")
}

// child returns the element of v named by seg. Lists are indexed by
// decimal numbers.
func child(v any, seg string) (any, bool) {
	switch v := v.(type) {
	case map[string]any:
		c, ok := v[seg]
		return c, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	case []string:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	}
	return nil, false
}

func (s *Store) lookup(p string) (any, bool) {
	segs := splitPath(p)
	if len(segs) == 0 {
		return nil, false
	}
	var cur any = s.root
	for _, seg := range segs {
		c, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = c
	}
	return cur, true
}

// Get returns a copy of the raw value at the dotted path p.
func (s *Store) Get(p string) (any, bool) {
	v, ok := s.lookup(p)
	if !ok {
		return nil, false
	}
	return deepcopy.Copy(v), true
}

// Has checks if the dotted path p exists.
func (s *Store) Has(p string) bool {
	_, ok := s.lookup(p)
	return ok
}

// Keys returns the keys of the map at p, in no particular order.
func (s *Store) Keys(p string) []string {
	v, ok := s.lookup(p)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// Set writes v at the dotted path p, creating intermediate maps when
// needed.
func (s *Store) Set(p string, v any) error {
	segs := splitPath(p)
	if len(segs) == 0 {
		return errcode.InvalidArgf("empty store path")
	}

	m := s.root
	for i, seg := range segs[:len(segs)-1] {
		next, ok := m[seg]
		if !ok {
			created := make(map[string]any)
			m[seg] = created
			m = created
			continue
		}
		nm, ok := next.(map[string]any)
		if !ok {
			return errcode.InvalidArgf(
				"%q is not a map", strings.Join(segs[:i+1], "."),
			)
		}
		m = nm
	}
	m[segs[len(segs)-1]] = deepcopy.Copy(v)
	s.version++
	return nil
}
