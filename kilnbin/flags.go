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
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"shanhu.io/kiln"
	"shanhu.io/kiln/ops"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/flagutil"
	"shanhu.io/text/lexing"
)

var cmdFlags = flagutil.NewFactory("kiln")

// defaultTask runs when no task is named.
const defaultTask = "default"

type buildFlags struct {
	file    string
	oldVer  string
	newVer  string
	verbose bool
}

func declareBuildFlags(flags *flagutil.FlagSet, f *buildFlags) {
	flags.StringVar(&f.file, "f", kiln.ConfigFile, "build file")
	flags.StringVar(&f.oldVer, "oldver", "", "version to replace, for option(oldver)")
	flags.StringVar(&f.newVer, "newver", "", "new version, for option(newver)")
	flags.BoolVar(&f.verbose, "v", false, "print debug logs")
}

func (f *buildFlags) args() map[string]string {
	m := make(map[string]string)
	if f.oldVer != "" {
		m["oldver"] = f.oldVer
	}
	if f.newVer != "" {
		m["newver"] = f.newVer
	}
	return m
}

func (f *buildFlags) logger() *log.Logger {
	l := kiln.NewLogger()
	if f.verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// newBuilder reads the build file and creates a builder that runs in the
// build file's directory, with all capabilities registered.
func newBuilder(f *buildFlags) (*kiln.Builder, *kiln.Config, error) {
	config, errs := kiln.ReadConfig(f.file)
	if errs != nil {
		wd, _ := os.Getwd()
		lexing.FprintErrs(os.Stderr, errs, wd)
		return nil, nil, errcode.InvalidArgf(
			"read build file got %d errors", len(errs),
		)
	}

	reg := kiln.NewRegistry()
	if err := ops.Register(reg); err != nil {
		return nil, nil, err
	}
	b := kiln.NewBuilder(filepath.Dir(f.file), config, reg, &kiln.Options{
		Args:   f.args(),
		Logger: f.logger(),
	})
	return b, config, nil
}

func taskNames(args []string) []string {
	if len(args) == 0 {
		return []string{defaultTask}
	}
	return args
}
