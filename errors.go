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
	"fmt"
	"sort"
	"strings"
)

// UnresolvedReferenceError is returned when an interpolation token refers
// to a path that does not exist in the store.
type UnresolvedReferenceError struct {
	Ref  string // The missing path.
	From string // The path whose value holds the token, if any.
}

func (e *UnresolvedReferenceError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("unresolved reference %q", e.Ref)
	}
	return fmt.Sprintf("unresolved reference %q in %q", e.Ref, e.From)
}

// CircularReferenceError is returned when resolving a path leads back into
// itself.
type CircularReferenceError struct {
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf(
		"circular reference: %s", strings.Join(e.Chain, " -> "),
	)
}

// CyclicTaskError is returned when a composite task references itself,
// directly or indirectly.
type CyclicTaskError struct {
	Cycle []string
}

func (e *CyclicTaskError) Error() string {
	return fmt.Sprintf("cyclic task: %s", strings.Join(e.Cycle, " -> "))
}

// UnknownTaskError is returned when a task name is neither a composite
// task, a task group nor a registered operation.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.Name)
}

// UnregisteredOperationError is returned when task groups use operation
// kinds that have no capability registered.
type UnregisteredOperationError struct {
	Kinds []string
}

func newUnregisteredOperationError(kinds []string) *UnregisteredOperationError {
	sorted := append([]string(nil), kinds...)
	sort.Strings(sorted)
	return &UnregisteredOperationError{Kinds: sorted}
}

func (e *UnregisteredOperationError) Error() string {
	return fmt.Sprintf(
		"unregistered operation: %s", strings.Join(e.Kinds, ", "),
	)
}

// CapabilityFailure is returned when a capability fails while running an
// invocation.
type CapabilityFailure struct {
	Task string
	Err  error
}

func (e *CapabilityFailure) Error() string {
	return fmt.Sprintf("task %q failed: %s", e.Task, e.Err)
}

func (e *CapabilityFailure) Unwrap() error { return e.Err }
