// Package browser runs headless Chrome sessions and exposes their tabs to the
// engine as pages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"
)

const (
	cdpReadyTimeout = 15 * time.Second
	stopGrace       = 5 * time.Second
)

// LaunchConfig holds browser launch configuration.
type LaunchConfig struct {
	// ChromePath overrides binary detection.
	ChromePath string
	Headless   bool
	CDPAddress string
	CDPPort    int
	ProfileDir string
	WindowSize string
	ExtraFlags []string
}

// Launcher manages the lifecycle of one browser process.
type Launcher struct {
	cfg    LaunchConfig
	cmd    *exec.Cmd
	exited chan struct{}
	logger *slog.Logger
}

// NewLauncher creates a new browser launcher with the given config.
func NewLauncher(cfg LaunchConfig, logger *slog.Logger) *Launcher {
	if cfg.WindowSize == "" {
		cfg.WindowSize = "1920,1080"
	}
	if cfg.CDPAddress == "" {
		cfg.CDPAddress = "127.0.0.1"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{cfg: cfg, logger: logger}
}

// detectBrowser finds an available Chrome/Chromium binary.
func detectBrowser(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("browser binary %q: %w", override, err)
		}
		return override, nil
	}
	candidates := []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", errors.New("no supported browser found (tried chromium-browser, chromium, google-chrome, google-chrome-stable)")
}

// args returns the command line for the configured browser.
func (l *Launcher) args() []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", l.cfg.CDPPort),
		fmt.Sprintf("--remote-debugging-address=%s", l.cfg.CDPAddress),
		fmt.Sprintf("--user-data-dir=%s", l.cfg.ProfileDir),
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--disable-breakpad",
		"--disable-crash-reporter",
		"--disable-features=Translate",
		fmt.Sprintf("--window-size=%s", l.cfg.WindowSize),
	}
	if l.cfg.Headless {
		args = append(args, "--headless=new", "--hide-scrollbars", "--mute-audio")
	}
	args = append(args, l.cfg.ExtraFlags...)
	return append(args, "about:blank")
}

// DebugURL is the HTTP endpoint of the DevTools protocol.
func (l *Launcher) DebugURL() string {
	return fmt.Sprintf("http://%s:%d", l.cfg.CDPAddress, l.cfg.CDPPort)
}

// Launch starts the browser process and waits for its DevTools endpoint.
func (l *Launcher) Launch(ctx context.Context) error {
	browserPath, err := detectBrowser(l.cfg.ChromePath)
	if err != nil {
		return err
	}
	l.logger.Debug("detected browser", "path", browserPath)

	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	l.cmd = exec.Command(browserPath, l.args()...)
	if err := l.cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	l.exited = make(chan struct{})
	go func(cmd *exec.Cmd, exited chan struct{}) {
		_ = cmd.Wait()
		close(exited)
	}(l.cmd, l.exited)
	l.logger.Debug("browser process started", "pid", l.cmd.Process.Pid, "port", l.cfg.CDPPort)

	if err := l.waitForCDP(ctx); err != nil {
		l.Stop()
		return fmt.Errorf("waiting for CDP: %w", err)
	}
	l.logger.Debug("CDP endpoint ready", "url", l.DebugURL())
	return nil
}

// waitForCDP polls the CDP /json/version endpoint until it responds.
func (l *Launcher) waitForCDP(ctx context.Context) error {
	url := l.DebugURL() + "/json/version"
	deadline := time.After(cdpReadyTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.exited:
			return errors.New("browser exited before CDP became ready")
		case <-deadline:
			return fmt.Errorf("CDP did not become ready within %s at %s", cdpReadyTimeout, url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Running reports whether the spawned process is still alive.
func (l *Launcher) Running() bool {
	if l.exited == nil {
		return false
	}
	select {
	case <-l.exited:
		return false
	default:
		return true
	}
}

// Stop terminates the browser process with SIGTERM, falling back to SIGKILL.
func (l *Launcher) Stop() {
	if !l.Running() {
		return
	}
	l.logger.Debug("stopping browser", "pid", l.cmd.Process.Pid)
	_ = l.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-l.exited:
	case <-time.After(stopGrace):
		l.logger.Warn("browser did not exit, sending SIGKILL", "pid", l.cmd.Process.Pid)
		l.Kill()
	}
}

// Kill force-terminates the browser process and waits for it to exit.
func (l *Launcher) Kill() {
	if !l.Running() {
		return
	}
	_ = l.cmd.Process.Kill()
	select {
	case <-l.exited:
	case <-time.After(stopGrace):
		l.logger.Warn("browser did not exit after SIGKILL", "pid", l.cmd.Process.Pid)
	}
}
