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
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/romdo/go-debounce"
)

// WatchState is the state of a watcher.
type WatchState int

// Watcher states.
const (
	WatchIdle WatchState = iota
	WatchDebouncing
	WatchPlanning
	WatchRunning
)

func (s WatchState) String() string {
	switch s {
	case WatchIdle:
		return "idle"
	case WatchDebouncing:
		return "debouncing"
	case WatchPlanning:
		return "planning"
	case WatchRunning:
		return "running"
	}
	return "unknown"
}

// DefaultDebounce is the default debounce window of a watcher.
const DefaultDebounce = 200 * time.Millisecond

type watchRule struct {
	*WatchRule
	matcher *Matcher
}

// WatchRun reports the result of one task run triggered by a watcher.
type WatchRun struct {
	Task    string
	Records []*Record
	Err     error
}

// Watcher reruns tasks when the files they watch change. Changes are
// debounced; changes that arrive while tasks run are queued for one more
// round after the run.
type Watcher struct {
	b     *Builder
	rules []*watchRule
	wait  time.Duration
	log   *log.Logger

	events   chan string
	fire     chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	state WatchState

	// OnRun, if not nil, is called after every triggered task run.
	OnRun func(run *WatchRun)
}

// NewWatcher creates a watcher for the rules. wait is the debounce window;
// DefaultDebounce is used when it is not positive.
func NewWatcher(b *Builder, rules []*WatchRule, wait time.Duration) *Watcher {
	if wait <= 0 {
		wait = DefaultDebounce
	}
	var rs []*watchRule
	for _, r := range rules {
		rs = append(rs, &watchRule{
			WatchRule: r,
			matcher:   NewMatcher(r.Files, b.WorkDir()),
		})
	}
	return &Watcher{
		b:      b,
		rules:  rs,
		wait:   wait,
		log:    b.env.log,
		events:  make(chan string, 256),
		fire:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// State returns the current state.
func (w *Watcher) State() WatchState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) setState(s WatchState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != s {
		w.log.Debug("watch", "state", s.String())
	}
	w.state = s
}

// Notify reports a changed file, absolute or relative to the work dir.
// Changes reported after Run returns are dropped.
func (w *Watcher) Notify(p string) {
	w.notify(context.Background(), p)
}

// notify is Notify that gives up when the context is canceled. It returns
// false if the change is dropped.
func (w *Watcher) notify(ctx context.Context, p string) bool {
	select {
	case w.events <- p:
		return true
	case <-w.stopped:
		return false
	case <-ctx.Done():
		return false
	}
}

// Tasks returns the tasks to run for the changed files, in rule order
// and without duplicates.
func (w *Watcher) Tasks(changed []string) []string {
	var tasks []string
	seen := make(map[string]bool)
	for _, r := range w.rules {
		hit := false
		for _, p := range changed {
			if r.matcher.Match(p) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		for _, t := range r.Tasks {
			if !seen[t] {
				seen[t] = true
				tasks = append(tasks, t)
			}
		}
	}
	return tasks
}

// Run handles change events until the context is canceled. A run in
// progress is not interrupted; Run waits for it before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	debounced, cancel := debounce.New(w.wait, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
	defer cancel()
	defer w.stopOnce.Do(func() { close(w.stopped) })

	var changed []string
	pending := make(map[string]bool)
	running := false

	for {
		select {
		case <-ctx.Done():
			if running {
				<-w.done
			}
			w.setState(WatchIdle)
			return ctx.Err()

		case p := <-w.events:
			if !pending[p] {
				pending[p] = true
				changed = append(changed, p)
			}
			if running {
				w.log.Debug("queued", "file", p)
				continue
			}
			w.setState(WatchDebouncing)
			debounced()

		case <-w.fire:
			if running {
				continue
			}
			tasks := w.Tasks(changed)
			changed = nil
			pending = make(map[string]bool)
			if len(tasks) == 0 {
				w.setState(WatchIdle)
				continue
			}
			running = true
			go func() {
				w.runTasks(ctx, tasks)
				w.done <- struct{}{}
			}()

		case <-w.done:
			running = false
			if len(changed) > 0 {
				w.setState(WatchDebouncing)
				debounced()
			} else {
				w.setState(WatchIdle)
			}
		}
	}
}

func (w *Watcher) runTasks(ctx context.Context, tasks []string) {
	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		run := &WatchRun{Task: task}

		w.setState(WatchPlanning)
		p := w.b.newPlanner()
		plan, err := p.plan(task)
		if err != nil {
			run.Err = err
		} else {
			w.setState(WatchRunning)
			run.Records, run.Err = w.b.run(ctx, p, plan)
		}

		if run.Err != nil {
			w.log.Error("watch run failed", "task", task, "err", run.Err)
		} else {
			w.log.Info("watch run done", "task", task)
		}
		if w.OnRun != nil {
			w.OnRun(run)
		}
	}
}
