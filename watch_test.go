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
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchBuild = `
groups:
  less:
    core:
      src: src/less/bundle.less
      dest: dist/css/bundle.css
  concat:
    bundle:
      src: src/js/*.js
      dest: dist/js/bundle.js
tasks:
  dist-css: [less:core]
  dist-js: [concat:bundle]
watch:
  less:
    files: [src/npm/npm-less.json, src/less/**/*.less]
    tasks: dist-css
  js:
    files: [src/js/**/*.js, "!src/js/develop.js"]
    tasks: [dist-js]
  all:
    files: [src/**/*]
    tasks: [dist-css, dist-js]
`

func TestWatcherTasks(t *testing.T) {
	reg := NewRegistry()
	new(callLog).register(t, reg, "less", "concat")
	dir := t.TempDir()
	b := newTestBuilder(t, dir, watchBuild, reg)
	c, errs := ParseConfig(filepath.Join(dir, ConfigFile), []byte(watchBuild))
	require.Nil(t, errs)
	w := NewWatcher(b, c.Watch[:2], 0)

	assert.Equal(t, []string{"dist-css"}, w.Tasks([]string{"src/less/x/a.less"}))
	assert.Equal(t, []string{"dist-js"}, w.Tasks([]string{
		filepath.Join(dir, "src/js/app.js"),
	}))
	assert.Empty(t, w.Tasks([]string{"src/js/develop.js"}))
	assert.Empty(t, w.Tasks([]string{"README.md"}))
	assert.Equal(t, []string{"dist-css", "dist-js"}, w.Tasks([]string{
		"src/js/app.js", "src/less/bundle.less",
	}))

	w = NewWatcher(b, c.Watch, 0)
	assert.Equal(t, []string{"dist-css", "dist-js"}, w.Tasks([]string{
		"src/less/bundle.less",
	}))
}

type watchTest struct {
	w    *Watcher
	runs chan *WatchRun

	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

// newWatchTest creates a watcher whose less capability blocks in its
// first call until release is closed.
func newWatchTest(t *testing.T) *watchTest {
	wt := &watchTest{
		runs:    make(chan *WatchRun, 16),
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}

	reg := NewRegistry()
	new(callLog).register(t, reg, "concat")
	require.NoError(t, reg.Register("less", CapabilityFunc(
		func(ctx context.Context, inv *Invocation) (*Result, error) {
			n := wt.calls.Add(1)
			wt.started <- struct{}{}
			if n == 1 {
				select {
				case <-wt.release:
				case <-ctx.Done():
				}
			}
			return nil, nil
		},
	)))

	dir := t.TempDir()
	b := newTestBuilder(t, dir, watchBuild, reg)
	c, errs := ParseConfig(filepath.Join(dir, ConfigFile), []byte(watchBuild))
	require.Nil(t, errs)

	wt.w = NewWatcher(b, c.Watch[:1], 30*time.Millisecond)
	wt.w.OnRun = func(run *WatchRun) { wt.runs <- run }
	return wt
}

func (wt *watchTest) start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wt.w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (wt *watchTest) waitRun(t *testing.T) *WatchRun {
	t.Helper()
	select {
	case run := <-wt.runs:
		return run
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for a run")
	}
	return nil
}

func (wt *watchTest) noMoreRuns(t *testing.T) {
	t.Helper()
	select {
	case run := <-wt.runs:
		t.Fatalf("unexpected run of %q", run.Task)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherDebounce(t *testing.T) {
	wt := newWatchTest(t)
	close(wt.release)
	wt.start(t)

	for _, f := range []string{
		"src/less/bundle.less",
		"src/less/variables.less",
		"src/less/bundle.less",
		"src/npm/npm-less.json",
	} {
		wt.w.Notify(f)
	}

	run := wt.waitRun(t)
	assert.Equal(t, "dist-css", run.Task)
	require.NoError(t, run.Err)
	require.Len(t, run.Records, 1)
	assert.Equal(t, StatusSuccess, run.Records[0].Status)

	wt.noMoreRuns(t)
	assert.Equal(t, int32(1), wt.calls.Load())
	require.Eventually(t, func() bool {
		return wt.w.State() == WatchIdle
	}, time.Second, 10*time.Millisecond)
}

func TestWatcherQueuesDuringRun(t *testing.T) {
	wt := newWatchTest(t)
	wt.start(t)

	wt.w.Notify("src/less/bundle.less")
	select {
	case <-wt.started:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for the first run to start")
	}
	assert.Equal(t, WatchRunning, wt.w.State())

	// Changes during the run are queued, for one more run.
	wt.w.Notify("src/less/bundle.less")
	wt.w.Notify("src/less/mixins.less")
	wt.w.Notify("src/less/variables.less")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), wt.calls.Load())
	close(wt.release)

	wt.waitRun(t)
	wt.waitRun(t)
	wt.noMoreRuns(t)
	assert.Equal(t, int32(2), wt.calls.Load())
}

func TestWatcherIgnoresUnwatched(t *testing.T) {
	wt := newWatchTest(t)
	close(wt.release)
	wt.start(t)

	wt.w.Notify("README.md")
	wt.w.Notify("src/js/app.js")
	wt.noMoreRuns(t)
	assert.Equal(t, int32(0), wt.calls.Load())
	assert.Equal(t, WatchIdle, wt.w.State())
}

func TestWatcherPlanError(t *testing.T) {
	const build = `
groups:
  less:
    core:
      src: <%= missing %>
      dest: dist/css/bundle.css
watch:
  less:
    files: [src/less/*.less]
    tasks: [less]
`
	reg := NewRegistry()
	calls := new(callLog)
	calls.register(t, reg, "less")
	dir := t.TempDir()
	b := newTestBuilder(t, dir, build, reg)
	c, errs := ParseConfig(filepath.Join(dir, ConfigFile), []byte(build))
	require.Nil(t, errs)

	runs := make(chan *WatchRun, 4)
	w := NewWatcher(b, c.Watch, 10*time.Millisecond)
	w.OnRun = func(run *WatchRun) { runs <- run }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Notify("src/less/bundle.less")
	select {
	case run := <-runs:
		unresolved := new(UnresolvedReferenceError)
		assert.ErrorAs(t, run.Err, &unresolved)
		assert.Nil(t, run.Records)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for a run")
	}
	assert.Empty(t, calls.tasks())
}

func TestWatchFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFiles(t, dir, "src/less/bundle.less", "dist/css/bundle.css")

	reg := NewRegistry()
	calls := new(callLog)
	calls.register(t, reg, "less", "concat")
	b := newTestBuilder(t, dir, watchBuild, reg)
	c, errs := ParseConfig(filepath.Join(dir, ConfigFile), []byte(watchBuild))
	require.Nil(t, errs)
	w := NewWatcher(b, c.Watch[:1], 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	go w.WatchFiles(ctx, []string{"dist"})

	f := filepath.Join(dir, "src/less/bundle.less")
	require.Eventually(t, func() bool {
		out, err := os.OpenFile(f, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return false
		}
		out.WriteString("// change\n")
		out.Close()
		return len(calls.tasks()) > 0
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "less:core", calls.tasks()[0])
}

func TestWatcherNotifyAfterStop(t *testing.T) {
	reg := NewRegistry()
	calls := new(callLog)
	calls.register(t, reg, "less", "concat")
	dir := t.TempDir()
	b := newTestBuilder(t, dir, watchBuild, reg)
	c, errs := ParseConfig(filepath.Join(dir, ConfigFile), []byte(watchBuild))
	require.Nil(t, errs)
	w := NewWatcher(b, c.Watch, 10*time.Millisecond)

	// Fill the event buffer before anything reads it.
	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < cap(w.events); i++ {
		require.True(t, w.notify(ctx, "src/js/app.js"))
	}
	cancel()
	assert.False(t, w.notify(ctx, "src/js/app.js"))

	require.ErrorIs(t, w.Run(ctx), context.Canceled)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2*cap(w.events); i++ {
			w.Notify("src/js/app.js")
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("notify blocked after the watcher stopped")
	}
	assert.Empty(t, calls.tasks())
}
