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
	"time"

	"github.com/charmbracelet/log"
	"github.com/mohae/deepcopy"
)

// Options provide the optional settings of a builder.
type Options struct {
	Args   map[string]string // Command line options, read by option().
	Now    time.Time         // Start time, read by today(). Default now.
	Logger *log.Logger       // Default logs to stderr.
}

// Builder plans and runs tasks of a build file.
type Builder struct {
	env    *env
	config *Config
	store  *Store
	reg    *Registry
}

// NewLogger creates the default logger.
func NewLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "kiln",
		ReportTimestamp: true,
	})
}

// NewBuilder creates a new builder that runs tasks in workDir.
func NewBuilder(
	workDir string, config *Config, reg *Registry, opts *Options,
) *Builder {
	if opts == nil {
		opts = new(Options)
	}
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger()
	}

	root, _ := deepcopy.Copy(config.Root).(map[string]any)
	return &Builder{
		env: &env{
			workDir: workDir,
			helpers: &Helpers{Now: now, Options: opts.Args},
			log:     logger,
		},
		config: config,
		store:  NewStore(root),
		reg:    reg,
	}
}

// Store returns the configuration store. Artifacts written back by runs
// stay in the store for later runs.
func (b *Builder) Store() *Store { return b.store }

// Registry returns the operation registry.
func (b *Builder) Registry() *Registry { return b.reg }

// WorkDir returns the absolute working directory.
func (b *Builder) WorkDir() string { return b.env.workDir }

func (b *Builder) newPlanner() *planner {
	return newPlanner(b.env, b.config, b.store, b.reg)
}

// Plan expands a task into its invocations without running anything.
func (b *Builder) Plan(name string) ([]*Invocation, error) {
	return b.newPlanner().plan(name)
}

// Build plans and runs a task. Planning errors are returned before any
// invocation runs. When an invocation fails, the records of the run are
// returned together with the error.
func (b *Builder) Build(ctx context.Context, name string) ([]*Record, error) {
	p := b.newPlanner()
	plan, err := p.plan(name)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, p, plan)
}

func (b *Builder) run(ctx context.Context, p *planner, plan []*Invocation) (
	[]*Record, error,
) {
	r := &runner{
		planner: p,
		reg:     b.reg,
		store:   b.store,
		log:     b.env.log,
	}
	return r.run(ctx, plan)
}
