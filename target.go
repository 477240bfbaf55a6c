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
	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"shanhu.io/misc/errcode"
)

// TargetSpec is the resolved definition of a task target.
type TargetSpec struct {
	Src       any               `mapstructure:"src"`
	Dest      string            `mapstructure:"dest"`
	Options   map[string]any    `mapstructure:"options"`
	Files     []any             `mapstructure:"files"`
	Expand    bool              `mapstructure:"expand"`
	Cwd       string            `mapstructure:"cwd"`
	Flatten   bool              `mapstructure:"flatten"`
	Ext       string            `mapstructure:"ext"`
	Writeback map[string]string `mapstructure:"writeback"`
}

// decodeTarget decodes a resolved target value. A string or a list is the
// short form of a target that only has sources.
func decodeTarget(v any) (*TargetSpec, error) {
	switch v := v.(type) {
	case string, []any:
		return &TargetSpec{Src: v}, nil
	case map[string]any:
		spec := new(TargetSpec)
		if err := mapstructure.WeakDecode(v, spec); err != nil {
			return nil, errcode.Annotate(err, "decode target")
		}
		return spec, nil
	}
	return nil, errcode.InvalidArgf("target is %T, not a map", v)
}

// mappings expands the sources of the target under cwd.
func (t *TargetSpec) mappings(cwd string) ([]*FileMapping, error) {
	if t.Files == nil {
		rule := &ExpandRule{
			Expand:  t.Expand,
			Cwd:     t.Cwd,
			Src:     t.Src,
			Dest:    t.Dest,
			Flatten: t.Flatten,
			Ext:     t.Ext,
		}
		return rule.mappings(cwd)
	}

	var ret []*FileMapping
	for _, f := range t.Files {
		rule, err := decodeExpandRule(f)
		if err != nil {
			return nil, err
		}
		ms, err := rule.mappings(cwd)
		if err != nil {
			return nil, err
		}
		ret = append(ret, ms...)
	}
	return ret, nil
}

// mergeOptions merges target options over group options.
func mergeOptions(group, target map[string]any) (map[string]any, error) {
	ret := make(map[string]any)
	for k, v := range group {
		ret[k] = v
	}
	if len(target) == 0 {
		return ret, nil
	}
	if err := mergo.Merge(&ret, target, mergo.WithOverride); err != nil {
		return nil, errcode.Annotate(err, "merge options")
	}
	return ret, nil
}
