package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dgnsrekt/pdown/internal/engine"
	"github.com/dgnsrekt/pdown/internal/share"
	"github.com/urfave/cli/v3"
)

// List prints the file tree of every share. It fails only when no share
// could be listed.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	opts, closeLog, err := r.setup(cmd, true)
	if err != nil {
		return err
	}
	defer closeLog()

	rt, err := r.newRuntime(cmd, "")
	if err != nil {
		return err
	}
	defer rt.close()

	printer := newProgressPrinter(r.errOut, opts, r.palette)
	stop := printer.follow(rt.bus)
	outcomes := rt.eng.List(ctx, opts.targets, cmd.Bool("recursive"))
	stop()

	var fulfilled []engine.ListResult
	var rejected []error
	for _, o := range outcomes {
		if o.Err != nil {
			rejected = append(rejected, o.Err)
			continue
		}
		fulfilled = append(fulfilled, o.Value)
	}

	if opts.json {
		if fulfilled == nil {
			fulfilled = []engine.ListResult{}
		}
		data, err := json.Marshal(fulfilled)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.output, string(data))
	} else if !opts.quiet {
		for _, res := range fulfilled {
			r.printListing(r.output, res, opts.size)
		}
	}

	if len(rejected) > 0 {
		r.reportFailures("Some shares could not be listed:", rejected)
		r.pointToSnapshots(rt)
	}
	r.logger.Debug("listed shares", "ok", len(fulfilled), "failed", len(rejected))
	if len(fulfilled) == 0 {
		return errSharesFailed
	}
	return nil
}

func (r *Runner) printListing(w io.Writer, res engine.ListResult, f sizeFormat) {
	header := r.palette.title.Render(share.IDFromURL(res.URL))
	if res.Files.IsFolder() {
		header += " - " + res.Files.Name
	}
	fmt.Fprintln(w, header)

	entries := share.Flatten(res.Files)
	if len(entries) == 0 {
		fmt.Fprintln(w, r.palette.warn.Render("No files found in this share"))
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTable(entries, f, r.palette))
}

// renderTable lays out entries as borderless Path / Size / MIME Type columns.
func renderTable(entries []share.Entry, f sizeFormat, p palette) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		var size int64
		if e.Size != nil {
			size = *e.Size
		}
		mime := e.MIMEType
		if mime == "" {
			mime = "--"
		}
		rows = append(rows, []string{e.Path, formatBytes(float64(size), f), mime})
	}

	cell := lipgloss.NewStyle().PaddingRight(1)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers("Path", "Size", "MIME Type").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.title.PaddingRight(1)
			}
			return cell
		})
	return strings.TrimRight(t.String(), "\n")
}

func (r *Runner) reportFailures(title string, errs []error) {
	fmt.Fprintln(r.errOut, r.palette.err.Render(title))
	for _, err := range errs {
		fmt.Fprintln(r.errOut, r.palette.err.Render("- "+err.Error()))
		r.logger.Debug("share failed", "code", engine.CodeOf(err), "error", err)
	}
}
