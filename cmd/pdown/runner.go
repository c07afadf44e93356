package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dgnsrekt/pdown/internal/browser"
	"github.com/dgnsrekt/pdown/internal/config"
	"github.com/dgnsrekt/pdown/internal/engine"
	"github.com/dgnsrekt/pdown/internal/events"
	"github.com/dgnsrekt/pdown/internal/locator"
	"github.com/dgnsrekt/pdown/internal/share"
	"github.com/dgnsrekt/pdown/internal/snapshot"
	"github.com/dgnsrekt/pdown/internal/storage"
	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

// debugLogFile is written next to the working directory in --debug mode.
const debugLogFile = "pdown.log"

// errSharesFailed is returned after per-share failures were already reported.
var errSharesFailed = errors.New("one or more shares failed")

// Runner holds the dependencies shared by every command action.
type Runner struct {
	cfg     *config.Config
	output  io.Writer
	errOut  io.Writer
	palette palette
	logger  *slog.Logger
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *config.Config
	Output io.Writer
	ErrOut io.Writer
}

// NewRunner creates a Runner writing results to Output and logs to ErrOut.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = &config.Config{BaseURL: share.DefaultBaseURL, Headless: true, LogLevel: "info"}
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}
	return &Runner{
		cfg:     opts.Config,
		output:  opts.Output,
		errOut:  opts.ErrOut,
		palette: newPalette(),
		logger:  slog.Default(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){downloadCommand, listCommand, serveCommand} {
		commands = append(commands, fn(r))
	}
	return commands
}

// runOptions are the resolved global flags of one invocation.
type runOptions struct {
	json    bool
	quiet   bool
	debug   bool
	size    sizeFormat
	targets []share.Target
}

// setup validates flags, installs the logger and parses share arguments.
// It returns a cleanup that closes log files.
func (r *Runner) setup(cmd *cli.Command, needTargets bool) (runOptions, func(), error) {
	opts := runOptions{
		json:  cmd.Bool("json"),
		quiet: cmd.Bool("quiet"),
		debug: cmd.Bool("debug"),
		size:  sizeFormat{human: cmd.Bool("human-readable"), si: cmd.Bool("si")},
	}
	if opts.quiet && opts.debug {
		return opts, nil, errors.New("option --quiet cannot be used with --debug")
	}
	if opts.size.human && opts.size.si {
		return opts, nil, errors.New("option --si cannot be used with --human-readable")
	}

	level := r.cfg.LogLevel
	var files []string
	switch {
	case opts.debug:
		level = "debug"
		files = append(files, debugLogFile)
	case opts.quiet:
		level = "error"
	}
	if r.cfg.LogFile != "" {
		files = append(files, r.cfg.LogFile)
	}
	closeLog, err := setupLogger(level, opts.json, r.errOut, files...)
	if err != nil {
		return opts, nil, fmt.Errorf("logger setup failed: %w", err)
	}
	r.logger = slog.Default()
	if opts.debug {
		r.logger.Info("debug mode enabled")
	}

	if needTargets {
		password := cmd.String("password")
		if password == "" {
			password = r.cfg.Password
		}
		opts.targets = share.ParseTargets(r.cfg.BaseURL, cmd.Args().Slice(), password)
		if len(opts.targets) == 0 {
			closeLog()
			return opts, nil, errors.New("at least one valid URL/ID is required")
		}
	}
	return opts, closeLog, nil
}

// setupLogger installs the default slog logger writing to out and every
// named file. The returned func closes the files.
func setupLogger(level string, jsonOut bool, out io.Writer, files ...string) (func(), error) {
	writers := []io.Writer{out}
	var rotators []*lumberjack.Logger
	for _, filename := range files {
		if dir := filepath.Dir(filename); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		lj := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    25,
			MaxBackups: 10,
			MaxAge:     14,
			Compress:   true,
		}
		rotators = append(rotators, lj)
		writers = append(writers, lj)
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	w := io.MultiWriter(writers...)
	handlerOpts := &slog.HandlerOptions{Level: slogLevel}
	var h slog.Handler
	if jsonOut {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(h))

	return func() {
		for _, lj := range rotators {
			_ = lj.Close()
		}
	}, nil
}

// runtime is the engine with the browser sessions and event bus behind it.
type runtime struct {
	eng     *engine.Engine
	manager *browser.Manager
	bus     *events.Bus
	// snapshots is nil unless PDOWN_SNAPSHOT_DIR is set.
	snapshots *snapshot.Store
	closers   []func()
}

// pointToSnapshots tells the user where failure screenshots went.
func (r *Runner) pointToSnapshots(rt *runtime) {
	if rt.snapshots == nil {
		return
	}
	r.logger.Info("failure screenshots saved", "dir", rt.snapshots.Dir())
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// newRuntime wires the engine for one invocation. downloadDir is empty for
// listing.
func (r *Runner) newRuntime(cmd *cli.Command, downloadDir string) (*runtime, error) {
	locFile := cmd.String("locators")
	if locFile == "" {
		locFile = r.cfg.LocatorsFile
	}
	locs, err := locator.LoadFile(locFile)
	if err != nil {
		return nil, err
	}

	var cookies string
	if path := cmd.String("cookies"); path != "" {
		data, err := os.ReadFile(expandHome(path))
		if err != nil {
			return nil, fmt.Errorf("read cookie file: %w", err)
		}
		cookies = string(data)
	}

	chromePath := cmd.String("chrome")
	if chromePath == "" {
		chromePath = r.cfg.ChromePath
	}
	userAgent := cmd.String("user-agent")
	if userAgent == "" {
		userAgent = r.cfg.UserAgent
	}

	manager := browser.NewManager(browser.ManagerConfig{
		ChromePath:  chromePath,
		Headless:    r.cfg.Headless && !cmd.Bool("headful"),
		ProfileRoot: r.cfg.ProfileRoot,
		Locators:    locs,
		Logger:      r.logger,
	})
	rt := &runtime{manager: manager, bus: events.NewBus()}
	rt.closers = append(rt.closers, manager.CloseAll)

	if dir := r.cfg.EventLogDir; dir != "" {
		reg := storage.NewWriterRegistry(dir, strconv.FormatInt(time.Now().Unix(), 10), 1024, 50)
		stop := storage.RecordEvents(rt.bus, reg)
		rt.closers = append(rt.closers, func() {
			stop()
			if err := reg.Close(); err != nil {
				r.logger.Warn("event log close failed", "error", err)
			}
		})
	}

	var sink engine.SnapshotSink
	if dir := r.cfg.SnapshotDir; dir != "" {
		store, err := snapshot.NewStore(expandHome(dir))
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.snapshots = store
		sink = store
	}

	timings := engine.DefaultTimings()
	timings.Navigation = time.Duration(r.cfg.NavTimeoutMS) * time.Millisecond

	rt.eng, err = engine.New(engine.Config{
		Sessions: engine.AcquireFunc(func(ctx context.Context, opts engine.SessionOptions) (engine.Session, error) {
			sess, err := manager.Acquire(ctx, opts)
			if err != nil {
				return nil, err
			}
			return sess, nil
		}),
		Locators:    locs,
		Timings:     timings,
		BaseURL:     r.cfg.BaseURL,
		MaxSessions: r.cfg.MaxSessions,
		Session: engine.SessionOptions{
			Cookies:     cookies,
			UserAgent:   userAgent,
			SpeedKBps:   int(cmd.Int("speed")),
			DownloadDir: downloadDir,
		},
		Snapshots: sink,
		Bus:       rt.bus,
		Logger:    r.logger,
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

// resolveDir expands ~ and makes dir absolute, defaulting to the working
// directory, and creates it. The browser rejects relative download paths.
func resolveDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create download folder: %w", err)
	}
	return abs, nil
}
