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

	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

func cmdWatch(args []string) error {
	flags := cmdFlags.New()
	f := new(buildFlags)
	declareBuildFlags(flags, f)
	var debounce string
	flags.StringVar(
		&debounce, "debounce", kiln.DefaultDebounce.String(),
		"quiet time before running tasks",
	)
	flags.ParseArgs(args)

	wait, err := time.ParseDuration(debounce)
	if err != nil {
		return errcode.Annotate(err, "parse debounce")
	}

	b, config, err := newBuilder(f)
	if err != nil {
		return err
	}
	if len(config.Watch) == 0 {
		return errcode.InvalidArgf("no watch rules in %q", f.file)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	l := f.logger()
	w := kiln.NewWatcher(b, config.Watch, wait)
	w.OnRun = func(run *kiln.WatchRun) {
		printRecords(l, run.Records)
	}

	errs := make(chan error, 1)
	go func() { errs <- w.WatchFiles(ctx, []string{"dist", "_gh_pages"}) }()

	l.Info("watching", "dir", b.WorkDir(), "rules", len(config.Watch))
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	cancel()
	if err := <-errs; err != nil && err != context.Canceled {
		return errcode.Annotate(err, "watch files")
	}
	return nil
}
