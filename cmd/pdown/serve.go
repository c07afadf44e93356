package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dgnsrekt/pdown/internal/api"
	"github.com/dgnsrekt/pdown/internal/netutil"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the HTTP API until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	_, closeLog, err := r.setup(cmd, false)
	if err != nil {
		return err
	}
	defer closeLog()

	dir, err := resolveDir(cmd.String("output"))
	if err != nil {
		return err
	}

	preferred := cmd.String("addr")
	if preferred == "" {
		preferred = r.cfg.BindAddr
	}
	sel, err := netutil.SelectBindAddr(preferred, r.cfg.PortCandidates, r.cfg.PortAutoFallback)
	if err != nil {
		r.logger.Error("failed to select bind address", "preferred", preferred, "error", err)
		return err
	}
	if sel.Fallback() {
		r.logger.Warn("preferred bind address busy, using fallback", "busy", sel.Busy, "addr", sel.Addr)
	}
	bindAddr := sel.Addr

	rt, err := r.newRuntime(cmd, dir)
	if err != nil {
		return err
	}
	defer rt.close()

	opts := api.Options{BaseURL: r.cfg.BaseURL, DownloadDir: dir, Bus: rt.bus}
	if rt.snapshots != nil {
		opts.Snapshots = rt.snapshots
	}
	h := api.NewServer(ctx, rt.eng, opts)
	srv := &http.Server{
		Addr:              bindAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with ctx instead of holding Shutdown open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("pdown listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs", "download_dir", dir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			r.logger.Error("pdown server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("pdown shutdown failed", "error", err)
	}
	// Jobs still inside session setup are not yet known to the session
	// manager, so rt.close alone would leave their browsers behind.
	if err := h.WaitJobs(shutdownCtx); err != nil {
		r.logger.Warn("download jobs still running at shutdown", "error", err)
	}
	return nil
}
