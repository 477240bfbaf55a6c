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
	"context"
	"os"

	"github.com/charmbracelet/log"
	"shanhu.io/kiln"
	"shanhu.io/misc/errcode"
)

func clean(_ context.Context, inv *kiln.Invocation) (*kiln.Result, error) {
	for _, p := range inv.Src {
		if p == inv.Dir {
			return nil, errcode.InvalidArgf("refuse to remove work dir")
		}
		log.Debug("remove", "path", p)
		if err := os.RemoveAll(p); err != nil {
			return nil, errcode.Annotatef(err, "remove %q", p)
		}
	}
	return nil, nil
}
