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

package ops

import (
	"context"

	"github.com/google/shlex"
	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

type execOptions struct {
	Command string   `mapstructure:"command"`
	Env     []string `mapstructure:"env"`
}

// execCommand runs a command line in the work directory.
func execCommand(ctx context.Context, inv *kiln.Invocation) (
	*kiln.Result, error,
) {
	opts := new(execOptions)
	if err := decodeOptions(inv, opts); err != nil {
		return nil, err
	}
	args, err := shlex.Split(opts.Command)
	if err != nil {
		return nil, errcode.Annotatef(err, "parse command %q", opts.Command)
	}
	if len(args) == 0 {
		return nil, errcode.InvalidArgf("command of %q is empty", inv.Task)
	}
	j := &execJob{
		dir:  inv.Dir,
		bin:  args[0],
		args: args[1:],
		env:  opts.Env,
	}
	if err := j.run(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}
