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
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

func printRecords(l *log.Logger, records []*kiln.Record) {
	for _, r := range records {
		switch r.Status {
		case kiln.StatusSuccess:
			l.Info(string(r.Status), "task", r.Task, "duration", r.Duration)
		case kiln.StatusFailure:
			l.Error(string(r.Status), "task", r.Task, "err", r.Err)
		default:
			l.Warn(string(r.Status), "task", r.Task)
		}
	}
}

func cmdBuild(args []string) error {
	flags := cmdFlags.New()
	f := new(buildFlags)
	declareBuildFlags(flags, f)
	args = flags.ParseArgs(args)

	b, _, err := newBuilder(f)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	l := f.logger()
	start := time.Now()
	for _, task := range taskNames(args) {
		records, err := b.Build(ctx, task)
		printRecords(l, records)
		if err != nil {
			return errcode.Annotatef(err, "build %q", task)
		}
	}
	l.Info("build done", "duration", time.Since(start))
	return nil
}
