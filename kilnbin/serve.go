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
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"shanhu.io/misc/errcode"
)

const defaultServePort = 9001

func cmdServe(args []string) error {
	flags := cmdFlags.New()
	f := new(buildFlags)
	declareBuildFlags(flags, f)
	var addr string
	flags.StringVar(&addr, "addr", "", "address to listen on")
	flags.ParseArgs(args)

	b, config, err := newBuilder(f)
	if err != nil {
		return err
	}

	dir := b.WorkDir()
	port := defaultServePort
	if s := config.Serve; s != nil {
		if s.Base != "" {
			dir = filepath.Join(dir, s.Base)
		}
		if s.Port != 0 {
			port = s.Port
		}
	}
	if addr == "" {
		addr = fmt.Sprintf("localhost:%d", port)
	}

	s := &http.Server{
		Addr:    addr,
		Handler: http.FileServer(http.Dir(dir)),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	f.logger().Info("serving", "dir", dir, "addr", addr)
	if err := s.ListenAndServe(); err != http.ErrServerClosed {
		return errcode.Annotate(err, "serve")
	}
	return nil
}
