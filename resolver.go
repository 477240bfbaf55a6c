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
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"
	"shanhu.io/misc/errcode"
)

// Resolver expands interpolation tokens in store values. Resolved values
// are memoized until the store is written.
type Resolver struct {
	store   *Store
	funcs   map[string]helperFunc
	version uint64
	memo    map[string]any
	tracer  *tracer

	// stub, when set, selects references that resolve to an empty string
	// instead of being looked up.
	stub func(ref string) bool
}

// NewResolver creates a resolver over the store. h may be nil, in which case
// the helpers see the zero time and no options.
func NewResolver(store *Store, h *Helpers) *Resolver {
	if h == nil {
		h = new(Helpers)
	}
	return &Resolver{
		store:   store,
		funcs:   h.funcs(),
		version: store.Version(),
		memo:    make(map[string]any),
		tracer:  newTracer(),
	}
}

func (r *Resolver) sync() {
	if v := r.store.Version(); v != r.version {
		r.memo = make(map[string]any)
		r.version = v
	}
}

// Resolve returns the fully resolved value at the dotted path p.
func (r *Resolver) Resolve(p string) (any, error) {
	r.sync()
	return r.resolvePath(p, "")
}

// ResolveValue resolves all tokens in v. Tokens in v are not memoized,
// but the paths they refer to are.
func (r *Resolver) ResolveValue(v any) (any, error) {
	r.sync()
	return r.value(v, "")
}

func (r *Resolver) resolvePath(p, from string) (any, error) {
	if v, ok := r.memo[p]; ok {
		return deepcopy.Copy(v), nil
	}
	if !r.tracer.push(p) {
		return nil, &CircularReferenceError{Chain: r.tracer.cycle(p)}
	}
	defer r.tracer.pop()

	raw, err := r.lookup(p, from)
	if err != nil {
		return nil, err
	}
	v, err := r.value(raw, p)
	if err != nil {
		return nil, err
	}
	r.memo[p] = v
	return deepcopy.Copy(v), nil
}

// lookup walks the raw tree. A string met half way is resolved first, so
// that paths can reach into values that are references themselves.
func (r *Resolver) lookup(p, from string) (any, error) {
	segs := splitPath(p)
	if len(segs) == 0 {
		return nil, &UnresolvedReferenceError{Ref: p, From: from}
	}

	var cur any = r.store.root
	for i, seg := range segs {
		if s, ok := cur.(string); ok && hasTemplate(s) {
			v, err := r.resolvePath(strings.Join(segs[:i], "."), from)
			if err != nil {
				return nil, err
			}
			cur = v
		}
		c, ok := child(cur, seg)
		if !ok {
			return nil, &UnresolvedReferenceError{Ref: p, From: from}
		}
		cur = c
	}
	return cur, nil
}

func (r *Resolver) value(v any, at string) (any, error) {
	switch v := v.(type) {
	case string:
		return r.str(v, at)
	case map[string]any:
		ret := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := r.value(item, at)
			if err != nil {
				return nil, err
			}
			ret[k] = resolved
		}
		return ret, nil
	case []any:
		ret := make([]any, 0, len(v))
		for _, item := range v {
			resolved, err := r.value(item, at)
			if err != nil {
				return nil, err
			}
			ret = append(ret, resolved)
		}
		return ret, nil
	case []string:
		ret := make([]any, 0, len(v))
		for _, item := range v {
			resolved, err := r.str(item, at)
			if err != nil {
				return nil, err
			}
			ret = append(ret, resolved)
		}
		return ret, nil
	}
	return v, nil
}

func (r *Resolver) str(s, at string) (any, error) {
	if !hasTemplate(s) {
		return s, nil
	}
	parts, err := parseTemplate(s)
	if err != nil {
		return nil, err
	}

	// A string that is a single token keeps the type of the value.
	if len(parts) == 1 && parts[0].expr != nil {
		return r.eval(parts[0].expr, at)
	}

	var sb strings.Builder
	for _, part := range parts {
		if part.expr == nil {
			sb.WriteString(part.text)
			continue
		}
		v, err := r.eval(part.expr, at)
		if err != nil {
			return nil, err
		}
		str, err := interpolate(v)
		if err != nil {
			return nil, errcode.Annotatef(err, "interpolate %q", s)
		}
		sb.WriteString(str)
	}
	return sb.String(), nil
}

func (r *Resolver) eval(e expr, at string) (any, error) {
	switch e := e.(type) {
	case *stringExpr:
		return e.s, nil
	case *pathExpr:
		if r.stub != nil && r.stub(e.path) {
			return "", nil
		}
		return r.resolvePath(e.path, at)
	case *callExpr:
		f, ok := r.funcs[e.name]
		if !ok {
			return nil, errcode.InvalidArgf("unknown helper %q", e.name)
		}
		var args []any
		for _, arg := range e.args {
			v, err := r.eval(arg, at)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		ret, err := f(args)
		if err != nil {
			return nil, errcode.Annotatef(err, "call %s", e.name)
		}
		return ret, nil
	}
	return nil, errcode.Internalf("unknown expression type %T", e)
}

func interpolate(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case []any:
		var strs []string
		for _, item := range v {
			s, err := interpolate(item)
			if err != nil {
				return "", err
			}
			strs = append(strs, s)
		}
		return strings.Join(strs, ","), nil
	case []string:
		return strings.Join(v, ","), nil
	case map[string]any:
		return "", errcode.InvalidArgf("cannot interpolate a map")
	}
	return fmt.Sprint(v), nil
}
