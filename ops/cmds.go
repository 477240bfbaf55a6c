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
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"shanhu.io/misc/errcode"
	"shanhu.io/misc/osutil"
)

type execJob struct {
	dir  string
	bin  string
	args []string
	env  []string
	out  io.Writer
}

func (j *execJob) command(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, j.bin, j.args...)
	cmd.Dir = j.dir
	if j.out == nil {
		cmd.Stdout = os.Stdout
	} else {
		cmd.Stdout = j.out
	}
	cmd.Stderr = os.Stderr
	osutil.CmdCopyEnv(cmd, "HOME")
	osutil.CmdCopyEnv(cmd, "PATH")
	cmd.Env = append(cmd.Env, j.env...)
	return cmd
}

func (j *execJob) run(ctx context.Context) error {
	if err := j.command(ctx).Run(); err != nil {
		return errcode.Annotatef(
			err, "run %s %s", j.bin, strings.Join(j.args, " "),
		)
	}
	return nil
}

// output runs the job and returns what it writes to stdout.
func (j *execJob) output(ctx context.Context) ([]byte, error) {
	buf := new(bytes.Buffer)
	cmd := j.command(ctx)
	cmd.Stdout = buf
	if err := cmd.Run(); err != nil {
		return nil, errcode.Annotatef(err, "run %s", j.bin)
	}
	return buf.Bytes(), nil
}
