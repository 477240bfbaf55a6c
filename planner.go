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
	"errors"
	"strings"

	"shanhu.io/misc/errcode"
)

// Invocation is one resolved call of a capability.
type Invocation struct {
	Task   string // Task reference, like "concat:bundle".
	Kind   string // Operation kind.
	Target string // Target name; empty for bare operations.
	Dir    string // Working directory.

	Src     []string       // All source files, in order.
	Dest    string         // Destination, empty if the target has none.
	Files   []*FileMapping // Sources grouped by destination.
	Options map[string]any

	// Writeback maps artifact names to store paths.
	Writeback map[string]string

	// Deferred invocations refer to values that earlier invocations write
	// back; they are only resolved when they run.
	Deferred bool
}

func splitTaskName(name string) (string, []string) {
	parts := strings.Split(name, ":")
	return parts[0], parts[1:]
}

type planner struct {
	config   *Config
	store    *Store
	reg      *Registry
	resolver *Resolver
	helpers  *Helpers
	dir      string

	tracer *tracer

	// Store paths that invocations planned so far write back into.
	pending map[string]bool
}

func newPlanner(env *env, config *Config, store *Store, reg *Registry) *planner {
	return &planner{
		config:   config,
		store:    store,
		reg:      reg,
		resolver: NewResolver(store, env.helpers),
		helpers:  env.helpers,
		dir:      env.workDir,
		tracer:   newTracer(),
		pending:  make(map[string]bool),
	}
}

func (p *planner) validate() error {
	var kinds []string
	for _, g := range p.config.Groups {
		kinds = append(kinds, g.Name)
	}
	return p.reg.Validate(kinds)
}

func (p *planner) plan(name string) ([]*Invocation, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p.expand(name)
}

func (p *planner) expand(name string) ([]*Invocation, error) {
	if refs, ok := p.config.Tasks[name]; ok {
		if !p.tracer.push(name) {
			return nil, &CyclicTaskError{Cycle: p.tracer.cycle(name)}
		}
		defer p.tracer.pop()

		var invs []*Invocation
		for _, ref := range refs {
			sub, err := p.expand(ref)
			if err != nil {
				return nil, err
			}
			invs = append(invs, sub...)
		}
		return invs, nil
	}

	groupName, targets := splitTaskName(name)
	if g := p.config.Group(groupName); g != nil {
		if len(targets) == 0 {
			targets = g.Targets
		}
		var invs []*Invocation
		for _, t := range targets {
			if t == optionsKey || !p.store.Has(g.Name+"."+t) {
				return nil, &UnknownTaskError{Name: g.Name + ":" + t}
			}
			inv, err := p.planTarget(g.Name, t)
			if err != nil {
				return nil, err
			}
			invs = append(invs, inv)
		}
		return invs, nil
	}

	if len(targets) == 0 && p.reg.Has(name) {
		return []*Invocation{{Task: name, Kind: name, Dir: p.dir}}, nil
	}
	return nil, &UnknownTaskError{Name: name}
}

func (p *planner) isPending(ref string) bool {
	for path := range p.pending {
		if ref == path || strings.HasPrefix(ref, path+".") {
			return true
		}
	}
	return false
}

// rawWriteback reads the writeback declaration of a target without
// resolving the target.
func (p *planner) rawWriteback(group, target string) map[string]string {
	v, ok := p.store.Get(group + "." + target + ".writeback")
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	ret := make(map[string]string)
	for k, path := range m {
		if s, ok := path.(string); ok {
			ret[k] = s
		}
	}
	return ret
}

// checkDeferred resolves the target with references to pending writeback
// paths stubbed out. Any other unresolved reference is an error.
func (p *planner) checkDeferred(group, target string) error {
	r := NewResolver(p.store, p.helpers)
	r.stub = p.isPending
	if _, err := r.Resolve(group + "." + target); err != nil {
		return err
	}
	if p.store.Has(group + "." + optionsKey) {
		if _, err := r.Resolve(group + "." + optionsKey); err != nil {
			return err
		}
	}
	return nil
}

func (p *planner) planTarget(group, target string) (*Invocation, error) {
	inv, err := p.invocation(group, target)
	if err != nil {
		unresolved := new(UnresolvedReferenceError)
		if !errors.As(err, &unresolved) {
			return nil, err
		}
		if err := p.checkDeferred(group, target); err != nil {
			return nil, err
		}
		inv = &Invocation{
			Task:      group + ":" + target,
			Kind:      group,
			Target:    target,
			Dir:       p.dir,
			Writeback: p.rawWriteback(group, target),
			Deferred:  true,
		}
	}
	for _, path := range inv.Writeback {
		p.pending[path] = true
	}
	return inv, nil
}

// invocation resolves a target into an invocation.
func (p *planner) invocation(group, target string) (*Invocation, error) {
	task := group + ":" + target

	v, err := p.resolver.Resolve(group + "." + target)
	if err != nil {
		return nil, err
	}
	spec, err := decodeTarget(v)
	if err != nil {
		return nil, errcode.Annotatef(err, "task %q", task)
	}

	var groupOpts map[string]any
	if p.store.Has(group + "." + optionsKey) {
		v, err := p.resolver.Resolve(group + "." + optionsKey)
		if err != nil {
			return nil, err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, errcode.InvalidArgf("options of %q is not a map", group)
		}
		groupOpts = m
	}
	opts, err := mergeOptions(groupOpts, spec.Options)
	if err != nil {
		return nil, errcode.Annotatef(err, "task %q", task)
	}

	files, err := spec.mappings(p.dir)
	if err != nil {
		return nil, errcode.Annotatef(err, "task %q", task)
	}

	inv := &Invocation{
		Task:      task,
		Kind:      group,
		Target:    target,
		Dir:       p.dir,
		Files:     files,
		Options:   opts,
		Writeback: spec.Writeback,
	}
	if spec.Dest != "" {
		inv.Dest = absPath(p.dir, spec.Dest)
	}
	for _, m := range files {
		inv.Src = append(inv.Src, m.Src...)
		if m.Dest == "" {
			continue
		}
		for _, src := range m.Src {
			if src == m.Dest {
				return nil, errcode.InvalidArgf(
					"task %q: %q is both source and destination", task, src,
				)
			}
		}
	}
	return inv, nil
}

// resolve re-resolves an invocation against the current store.
func (p *planner) resolve(inv *Invocation) (*Invocation, error) {
	if inv.Target == "" {
		return inv, nil
	}
	return p.invocation(inv.Kind, inv.Target)
}
