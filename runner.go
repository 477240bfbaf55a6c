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
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"shanhu.io/misc/errcode"
)

// Status is the outcome of an invocation in a run.
type Status string

// Invocation outcomes.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Record is the execution record of one invocation.
type Record struct {
	Task     string
	Status   Status
	Duration time.Duration
	Err      error
}

type runner struct {
	planner *planner
	reg     *Registry
	store   *Store
	log     *log.Logger
}

// run executes the plan in order, and stops at the first failure. Every
// invocation of the plan gets a record.
func (r *runner) run(ctx context.Context, plan []*Invocation) (
	[]*Record, error,
) {
	var records []*Record
	var failure error

	for _, inv := range plan {
		if failure == nil {
			failure = ctx.Err()
		}
		if failure != nil {
			records = append(records, &Record{
				Task:   inv.Task,
				Status: StatusSkipped,
			})
			continue
		}

		r.log.Info("run", "task", inv.Task)
		start := time.Now()
		err := r.runOne(ctx, inv)
		rec := &Record{
			Task:     inv.Task,
			Status:   StatusSuccess,
			Duration: time.Since(start),
		}
		if err != nil {
			rec.Status = StatusFailure
			rec.Err = err
			failure = err
			r.log.Error("fail", "task", inv.Task, "err", err)
		} else {
			r.log.Debug("done", "task", inv.Task, "duration", rec.Duration)
		}
		records = append(records, rec)
	}
	return records, failure
}

func (r *runner) runOne(ctx context.Context, inv *Invocation) error {
	resolved, err := r.planner.resolve(inv)
	if err != nil {
		return err
	}

	op, ok := r.reg.ops[inv.Kind]
	if !ok {
		return newUnregisteredOperationError([]string{inv.Kind})
	}
	if op.requireInput && len(resolved.Src) == 0 {
		return &CapabilityFailure{
			Task: inv.Task,
			Err:  errcode.InvalidArgf("no input files"),
		}
	}

	res, err := op.cap.Run(ctx, resolved)
	if err != nil {
		return &CapabilityFailure{Task: inv.Task, Err: err}
	}
	if res == nil {
		return nil
	}
	return r.writeback(resolved, res.Artifacts)
}

func (r *runner) writeback(inv *Invocation, artifacts map[string]any) error {
	var names []string
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p, ok := inv.Writeback[name]
		if !ok {
			p = inv.Kind + "." + name
			if inv.Target != "" {
				p = inv.Kind + "." + inv.Target + "." + name
			}
		}
		if err := r.store.Set(p, artifacts[name]); err != nil {
			return errcode.Annotatef(err, "write back %q to %q", name, p)
		}
		r.log.Debug("write back", "task", inv.Task, "path", p)
	}
	return nil
}
