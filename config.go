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
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/jsonutil"
	"shanhu.io/misc/jsonx"
	"shanhu.io/text/lexing"
)

// ConfigFile is the default name of the build file.
const ConfigFile = "Kilnfile.yaml"

// optionsKey is the key of group level options in a task group.
const optionsKey = "options"

// Group is a task group. The group name is also the operation kind that
// runs its targets.
type Group struct {
	Name    string
	Targets []string // In declared order.
}

// WatchRule maps changed files to the tasks to run.
type WatchRule struct {
	Name  string
	Files []string
	Tasks []string
}

// ServeConfig configures the preview server.
type ServeConfig struct {
	Port int    `yaml:"port"`
	Base string `yaml:"base"`
}

// Config is a loaded build file.
type Config struct {
	// Root is the configuration tree that seeds the store: data values,
	// package metadata, package reference lists and task groups.
	Root map[string]any

	Groups []*Group
	Tasks  map[string][]string
	Watch  []*WatchRule
	Serve  *ServeConfig
}

type buildFile struct {
	Meta    string                       `yaml:"meta"`
	Include map[string]map[string]string `yaml:"include"`
	Data    yaml.MapSlice                `yaml:"data"`
	Groups  yaml.MapSlice                `yaml:"groups"`
	Tasks   yaml.MapSlice                `yaml:"tasks"`
	Watch   yaml.MapSlice                `yaml:"watch"`
	Serve   *ServeConfig                 `yaml:"serve"`
}

// plain converts ordered maps into plain maps.
func plain(v any) any {
	switch v := v.(type) {
	case yaml.MapSlice:
		m := make(map[string]any, len(v))
		for _, item := range v {
			m[fmt.Sprint(item.Key)] = plain(item.Value)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, item := range v {
			m[k] = plain(item)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, item := range v {
			m[fmt.Sprint(k)] = plain(item)
		}
		return m
	case []any:
		ret := make([]any, 0, len(v))
		for _, item := range v {
			ret = append(ret, plain(item))
		}
		return ret
	}
	return v
}

func stringList(v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		var ret []string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errcode.InvalidArgf("%v is not a string", item)
			}
			ret = append(ret, s)
		}
		return ret, nil
	}
	return nil, errcode.InvalidArgf("%T is not a string list", v)
}

// ReadConfig reads a build file. Relative files named in it are read from
// the build file's directory.
func ReadConfig(f string) (*Config, []*lexing.Error) {
	bs, err := os.ReadFile(f)
	if err != nil {
		return nil, lexing.SingleErr(errcode.Annotate(err, "read build file"))
	}
	return ParseConfig(f, bs)
}

// ParseConfig parses the content of build file f.
func ParseConfig(f string, bs []byte) (*Config, []*lexing.Error) {
	file := new(buildFile)
	if err := yaml.UnmarshalWithOptions(
		bs, file, yaml.UseOrderedMap(),
	); err != nil {
		return nil, lexing.SingleErr(errcode.Annotate(err, "parse build file"))
	}

	dir := filepath.Dir(f)
	pos := &lexing.Pos{File: f}
	errList := lexing.NewErrorList()

	c := &Config{
		Root:  make(map[string]any),
		Tasks: make(map[string][]string),
		Serve: file.Serve,
	}

	if file.Meta != "" {
		var pkg map[string]any
		if err := jsonutil.ReadFile(filepath.Join(dir, file.Meta), &pkg); err != nil {
			errList.Errorf(pos, "read metadata %q: %s", file.Meta, err)
		} else {
			c.Root["pkg"] = pkg
		}
	}

	for key, lists := range file.Include {
		m := make(map[string]any)
		for name, listFile := range lists {
			var list []any
			if err := jsonx.ReadFile(filepath.Join(dir, listFile), &list); err != nil {
				errList.Errorf(pos, "read include %s.%s: %s", key, name, err)
				continue
			}
			m[name] = list
		}
		c.Root[key] = m
	}

	for _, item := range file.Data {
		key := fmt.Sprint(item.Key)
		c.Root[key] = plain(item.Value)
	}

	for _, item := range file.Groups {
		name := fmt.Sprint(item.Key)
		if _, ok := c.Root[name]; ok {
			errList.Errorf(pos, "group %q redeclared", name)
			continue
		}
		targets, ok := item.Value.(yaml.MapSlice)
		if !ok {
			errList.Errorf(pos, "group %q is not a map", name)
			continue
		}
		g := &Group{Name: name}
		for _, t := range targets {
			if k := fmt.Sprint(t.Key); k != optionsKey {
				g.Targets = append(g.Targets, k)
			}
		}
		c.Groups = append(c.Groups, g)
		c.Root[name] = plain(targets)
	}

	for _, item := range file.Tasks {
		name := fmt.Sprint(item.Key)
		refs, err := stringList(item.Value)
		if err != nil {
			errList.Errorf(pos, "task %q: %s", name, err)
			continue
		}
		c.Tasks[name] = refs
	}

	for _, item := range file.Watch {
		name := fmt.Sprint(item.Key)
		var spec struct {
			Files any `mapstructure:"files"`
			Tasks any `mapstructure:"tasks"`
		}
		if err := mapstructure.Decode(plain(item.Value), &spec); err != nil {
			errList.Errorf(pos, "watch %q: %s", name, err)
			continue
		}
		files, err := stringList(spec.Files)
		if err != nil {
			errList.Errorf(pos, "watch %q files: %s", name, err)
			continue
		}
		tasks, err := stringList(spec.Tasks)
		if err != nil {
			errList.Errorf(pos, "watch %q tasks: %s", name, err)
			continue
		}
		c.Watch = append(c.Watch, &WatchRule{
			Name:  name,
			Files: files,
			Tasks: tasks,
		})
	}

	if errs := errList.Errs(); errs != nil {
		return nil, errs
	}
	return c, nil
}

// Group returns the task group of the given name, or nil if not found.
func (c *Config) Group(name string) *Group {
	for _, g := range c.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}
