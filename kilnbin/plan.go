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

package kilnbin

import (
	"fmt"
	"path/filepath"
	"strings"

	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

func relTo(dir, p string) string {
	if rel, err := filepath.Rel(dir, p); err == nil {
		return rel
	}
	return p
}

func printInvocation(dir string, inv *kiln.Invocation) {
	if inv.Deferred {
		fmt.Printf("%s (resolved at run time)\n", inv.Task)
		return
	}
	fmt.Println(inv.Task)
	for _, m := range inv.Files {
		var srcs []string
		for _, src := range m.Src {
			srcs = append(srcs, relTo(dir, src))
		}
		if m.Dest == "" {
			fmt.Printf("  %s\n", strings.Join(srcs, " "))
		} else {
			fmt.Printf("  %s -> %s\n", strings.Join(srcs, " "), relTo(dir, m.Dest))
		}
	}
}

func cmdPlan(args []string) error {
	flags := cmdFlags.New()
	f := new(buildFlags)
	declareBuildFlags(flags, f)
	args = flags.ParseArgs(args)

	b, _, err := newBuilder(f)
	if err != nil {
		return err
	}
	for _, task := range taskNames(args) {
		plan, err := b.Plan(task)
		if err != nil {
			return errcode.Annotatef(err, "plan %q", task)
		}
		for _, inv := range plan {
			printInvocation(b.WorkDir(), inv)
		}
	}
	return nil
}
