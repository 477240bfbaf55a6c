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

// tracer tracks the chain of names currently being expanded, so that
// re-entering a name can be reported as a cycle.
type tracer struct {
	trace []string
	m     map[string]bool
}

func newTracer() *tracer {
	return &tracer{
		m: make(map[string]bool),
	}
}

// push adds name to the chain. It returns false if name is already in the
// chain.
func (t *tracer) push(name string) bool {
	if t.m[name] {
		return false
	}
	t.trace = append(t.trace, name)
	t.m[name] = true
	return true
}

func (t *tracer) pop() {
	n := len(t.trace)
	if n == 0 {
		return
	}
	last := t.trace[n-1]
	delete(t.m, last)
	t.trace = t.trace[:n-1]
}

// cycle returns the part of the chain that starts at name, closed by name
// again.
func (t *tracer) cycle(name string) []string {
	for i, n := range t.trace {
		if n == name {
			ret := append([]string(nil), t.trace[i:]...)
			return append(ret, name)
		}
	}
	return []string{name}
}
