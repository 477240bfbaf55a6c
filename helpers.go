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
	"fmt"
	"regexp"
	"strings"
	"time"

	"shanhu.io/misc/errcode"
)

type helperFunc func(args []any) (any, error)

// Helpers carries the inputs of the built-in template helpers.
type Helpers struct {
	Now     time.Time         // Process start time.
	Options map[string]string // Command line options.
}

func (h *Helpers) funcs() map[string]helperFunc {
	return map[string]helperFunc{
		"today":  h.today,
		"option": h.option,
		"quote":  quoteHelper,
	}
}

func stringArgs(name string, args []any, min, max int) ([]string, error) {
	if len(args) < min || len(args) > max {
		return nil, errcode.InvalidArgf(
			"%s takes %d to %d arguments, got %d", name, min, max, len(args),
		)
	}
	var ret []string
	for _, arg := range args {
		s, ok := arg.(string)
		if !ok {
			return nil, errcode.InvalidArgf(
				"%s: argument is %T, not a string", name, arg,
			)
		}
		ret = append(ret, s)
	}
	return ret, nil
}

func (h *Helpers) today(args []any) (any, error) {
	strs, err := stringArgs("today", args, 0, 1)
	if err != nil {
		return nil, err
	}
	mask := "yyyy-mm-dd"
	if len(strs) == 1 {
		mask = strs[0]
	}
	return formatDate(h.Now, mask), nil
}

// option returns the command line option, or "" when it is not given.
func (h *Helpers) option(args []any) (any, error) {
	strs, err := stringArgs("option", args, 1, 1)
	if err != nil {
		return nil, err
	}
	return h.Options[strs[0]], nil
}

func quoteHelper(args []any) (any, error) {
	strs, err := stringArgs("quote", args, 1, 1)
	if err != nil {
		return nil, err
	}
	return regexp.QuoteMeta(strs[0]), nil
}

// Date mask fields, longest first.
var dateFields = []string{
	"yyyy", "yy", "mm", "m", "dd", "d", "HH", "H", "MM", "M", "ss", "s",
}

func dateField(t time.Time, f string) string {
	switch f {
	case "yyyy":
		return fmt.Sprintf("%04d", t.Year())
	case "yy":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "mm":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "m":
		return fmt.Sprint(int(t.Month()))
	case "dd":
		return fmt.Sprintf("%02d", t.Day())
	case "d":
		return fmt.Sprint(t.Day())
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return fmt.Sprint(t.Hour())
	case "MM":
		return fmt.Sprintf("%02d", t.Minute())
	case "M":
		return fmt.Sprint(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return fmt.Sprint(t.Second())
	}
	return f
}

func formatDate(t time.Time, mask string) string {
	var sb strings.Builder
	for len(mask) > 0 {
		matched := false
		for _, f := range dateFields {
			if strings.HasPrefix(mask, f) {
				sb.WriteString(dateField(t, f))
				mask = mask[len(f):]
				matched = true
				break
			}
		}
		if !matched {
			sb.WriteByte(mask[0])
			mask = mask[1:]
		}
	}
	return sb.String()
}
