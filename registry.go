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

	"shanhu.io/misc/errcode"
	"shanhu.io/misc/strutil"
)

// Capability performs the transformation of an operation kind.
type Capability interface {
	Run(ctx context.Context, inv *Invocation) (*Result, error)
}

// CapabilityFunc adapts a function into a Capability.
type CapabilityFunc func(ctx context.Context, inv *Invocation) (*Result, error)

// Run calls f.
func (f CapabilityFunc) Run(ctx context.Context, inv *Invocation) (
	*Result, error,
) {
	return f(ctx, inv)
}

// Result is what a capability returns on success.
type Result struct {
	// Artifacts are written back into the store, at the path declared in
	// the target's writeback map, or under the target otherwise.
	Artifacts map[string]any
}

type operation struct {
	kind         string
	cap          Capability
	requireInput bool
}

// OperationOption sets optional properties of a registered operation.
type OperationOption func(op *operation)

// RequireInput marks an operation that fails on an empty source list.
func RequireInput() OperationOption {
	return func(op *operation) { op.requireInput = true }
}

// Registry maps operation kinds to capabilities.
type Registry struct {
	ops map[string]*operation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*operation)}
}

// Register registers the capability of an operation kind.
func (r *Registry) Register(
	kind string, c Capability, opts ...OperationOption,
) error {
	if kind == "" {
		return errcode.InvalidArgf("empty operation kind")
	}
	if _, ok := r.ops[kind]; ok {
		return errcode.InvalidArgf("operation %q registered twice", kind)
	}
	op := &operation{kind: kind, cap: c}
	for _, opt := range opts {
		opt(op)
	}
	r.ops[kind] = op
	return nil
}

// Has checks if the operation kind has a capability.
func (r *Registry) Has(kind string) bool {
	_, ok := r.ops[kind]
	return ok
}

// Kinds returns all registered kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make(map[string]bool)
	for k := range r.ops {
		kinds[k] = true
	}
	return strutil.SortedList(kinds)
}

// Validate checks that every kind has a capability.
func (r *Registry) Validate(kinds []string) error {
	var missing []string
	for _, k := range kinds {
		if !r.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return newUnregisteredOperationError(missing)
	}
	return nil
}
