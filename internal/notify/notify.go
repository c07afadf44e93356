// Package notify posts download summaries to an ntfy topic.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Summary describes one finished download run.
type Summary struct {
	Dir       string
	Succeeded []string
	// Failed holds one error message per failed share.
	Failed []string
}

// Title is the notification headline.
func (s Summary) Title() string {
	if len(s.Failed) > 0 {
		return fmt.Sprintf("pdown: %d of %d downloads failed", len(s.Failed), len(s.Succeeded)+len(s.Failed))
	}
	return fmt.Sprintf("pdown: %d downloads complete", len(s.Succeeded))
}

// Message lists the shares and the destination folder.
func (s Summary) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Saved to %s\n", s.Dir)
	for _, id := range s.Succeeded {
		fmt.Fprintf(&b, "ok %s\n", id)
	}
	for _, msg := range s.Failed {
		fmt.Fprintf(&b, "failed %s\n", msg)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SendSummary posts s to the ntfy endpoint.
func SendSummary(ctx context.Context, client *http.Client, endpoint string, s Summary) error {
	tag := "white_check_mark"
	if len(s.Failed) > 0 {
		tag = "warning"
	}
	return Send(ctx, client, endpoint, s.Title(), tag, s.Message())
}

// Send posts a plain-text message using ntfy's Title and Tags headers.
func Send(ctx context.Context, client *http.Client, endpoint, title, tag, message string) error {
	if endpoint == "" {
		return errors.New("ntfy endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if tag != "" {
		req.Header.Set("Tags", tag)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
