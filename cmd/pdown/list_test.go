package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgnsrekt/pdown/internal/config"
	"github.com/dgnsrekt/pdown/internal/engine"
	"github.com/dgnsrekt/pdown/internal/share"
	"github.com/urfave/cli/v3"
)

func sampleTree() share.FileInfo {
	return share.NewFolder("Photos", []share.FileInfo{
		share.NewFolder("dir", []share.FileInfo{
			share.NewFile("b.txt", "text/plain", 2048),
		}),
		share.NewFile("z.png", "image/png", 5),
		share.NewFile("a.txt", "", 3),
	})
}

func TestRenderTableOrdersByDepthThenPath(t *testing.T) {
	out := renderTable(share.Flatten(sampleTree()), sizeFormat{human: true}, newPalette())

	lines := strings.Split(out, "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q; want header and 3 rows", lines)
	}
	for i, want := range []string{"Path", "a.txt", "z.png", "dir/b.txt"} {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), want) {
			t.Fatalf("line %d = %q; want prefix %q", i, lines[i], want)
		}
	}
	if !strings.Contains(lines[1], "--") {
		t.Fatalf("missing MIME type placeholder in %q", lines[1])
	}
	if !strings.Contains(lines[3], "2.00K") || !strings.Contains(lines[3], "text/plain") {
		t.Fatalf("row = %q; want human size and MIME type", lines[3])
	}
}

func TestPrintListing(t *testing.T) {
	r := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}})

	var buf bytes.Buffer
	r.printListing(&buf, engine.ListResult{URL: "https://drive.proton.me/urls/" + shareID, Files: sampleTree()}, sizeFormat{})
	out := buf.String()
	if !strings.HasPrefix(out, shareID+" - Photos\n") {
		t.Fatalf("header = %q; want share id and folder name", out)
	}
	if !strings.Contains(out, "2048B") {
		t.Fatalf("output = %q; want raw byte sizes", out)
	}

	buf.Reset()
	r.printListing(&buf, engine.ListResult{URL: "https://drive.proton.me/urls/" + shareID, Files: share.NewFolder("Empty", []share.FileInfo{})}, sizeFormat{})
	if !strings.Contains(buf.String(), "No files found in this share") {
		t.Fatalf("output = %q; want empty share warning", buf.String())
	}

	buf.Reset()
	r.printListing(&buf, engine.ListResult{URL: "https://drive.proton.me/urls/" + shareID, Files: share.NewFile("movie.mkv", "video/x-matroska", 10)}, sizeFormat{})
	if strings.Contains(buf.String(), " - movie.mkv") {
		t.Fatalf("file shares have no folder suffix: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "movie.mkv") {
		t.Fatalf("output = %q; want the file row", buf.String())
	}
}

func runSetup(t *testing.T, args ...string) error {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var errOut bytes.Buffer
	r := NewRunner(RunnerOpts{
		Config: &config.Config{BaseURL: share.DefaultBaseURL, LogLevel: "info"},
		Output: &bytes.Buffer{},
		ErrOut: &errOut,
	})
	app := &cli.Command{
		Name:  "pdown",
		Flags: globalFlags(),
		Commands: []*cli.Command{{
			Name:  "ls",
			Flags: sizeFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				_, closeLog, err := r.setup(cmd, true)
				if err != nil {
					return err
				}
				closeLog()
				return nil
			},
		}},
	}
	return app.Run(context.Background(), append([]string{"pdown"}, args...))
}

func TestSetupValidatesFlagsAndTargets(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"quiet with debug", []string{"ls", "-q", "-d", shareID}, "--quiet"},
		{"si with human", []string{"ls", "--si", "--human-readable", shareID}, "--si"},
		{"no valid share", []string{"ls", "nothing-here"}, "at least one valid URL/ID"},
		{"ok", []string{"ls", "https://drive.proton.me/urls/" + shareID}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runSetup(t, tt.args...)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("setup: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v; want %q", err, tt.wantErr)
			}
		})
	}
}
