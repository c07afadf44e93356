package main

import (
	"context"
	"time"

	"github.com/dgnsrekt/pdown/internal/notify"
	"github.com/urfave/cli/v3"
)

const notifyTimeout = 10 * time.Second

// Download fetches every share into --output. It fails if any share failed.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	opts, closeLog, err := r.setup(cmd, true)
	if err != nil {
		return err
	}
	defer closeLog()

	dir, err := resolveDir(cmd.String("output"))
	if err != nil {
		return err
	}

	rt, err := r.newRuntime(cmd, dir)
	if err != nil {
		return err
	}
	defer rt.close()

	r.logger.Debug("downloading shares", "count", len(opts.targets), "dir", dir)
	printer := newProgressPrinter(r.output, opts, r.palette)
	stop := printer.follow(rt.bus)
	outcomes := rt.eng.Download(ctx, opts.targets, dir)
	stop()

	var failed []error
	summary := notify.Summary{Dir: dir}
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o.Err)
			summary.Failed = append(summary.Failed, o.Err.Error())
			continue
		}
		summary.Succeeded = append(summary.Succeeded, o.Target.ID)
	}
	r.sendSummary(summary)
	if len(failed) > 0 {
		r.reportFailures("Some downloads failed:", failed)
		r.pointToSnapshots(rt)
		return errSharesFailed
	}
	if !opts.quiet && !opts.json {
		r.logger.Info("downloads complete", "count", len(outcomes), "dir", dir)
	}
	return nil
}

// sendSummary posts the run summary when PDOWN_NOTIFY_URL is set. It runs after
// an interrupt too, so it does not inherit the command context.
func (r *Runner) sendSummary(s notify.Summary) {
	if r.cfg.NotifyURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := notify.SendSummary(ctx, nil, r.cfg.NotifyURL, s); err != nil {
		r.logger.Warn("notification failed", "url", r.cfg.NotifyURL, "error", err)
	}
}
