package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sizeFormat selects byte formatting: raw bytes, binary units (-h) or
// decimal units (--si).
type sizeFormat struct {
	human bool
	si    bool
}

var sizeUnits = []string{"B", "K", "M", "G", "T", "P"}

func formatBytes(value float64, f sizeFormat) string {
	if value == 0 || math.IsNaN(value) {
		return "0B"
	}
	if !f.human && !f.si {
		return fmt.Sprintf("%dB", int64(math.Round(value)))
	}
	base := 1024.0
	if f.si {
		base = 1000
	}
	i := 0
	for value >= base && i < len(sizeUnits)-1 {
		value /= base
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d%s", int64(math.Round(value)), sizeUnits[i])
	}
	return fmt.Sprintf("%.2f%s", value, sizeUnits[i])
}

func formatProgress(value, total int64, f sizeFormat) string {
	return formatBytes(float64(value), f) + " / " + formatBytes(float64(total), f)
}

func formatSpeed(bps float64, f sizeFormat) string {
	return formatBytes(bps, f) + "/s"
}

// formatFilename fits name into a fixed-width column, eliding the middle
// and keeping the extension when it has to shorten.
func formatFilename(name string, width int) string {
	runes := []rune(name)
	if len(runes) <= width {
		return fmt.Sprintf("%-*s", width, name)
	}

	var out string
	dot := strings.LastIndex(name, ".")
	switch {
	case dot <= 0:
		out = string(runes[:width-3]) + "..."
	default:
		ext := []rune(name[dot:])
		if baseMax := width - len(ext) - 3; baseMax > 0 {
			out = string(runes[:baseMax]) + "..." + string(ext)
		} else {
			out = string(runes[:width-1]) + "..."
		}
	}
	return fmt.Sprintf("%-*s", width, out)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// palette holds the CLI's named lipgloss styles.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
	bar   lipgloss.Style
}

func newPalette() palette {
	purple := lipgloss.Color("#6D4AFF")
	return palette{
		title: lipgloss.NewStyle().Foreground(purple).Bold(true),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
		err:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#38277A")),
		bar:   lipgloss.NewStyle().Foreground(purple),
	}
}
