package share

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// DefaultBaseURL is the public web origin shares are opened on.
const DefaultBaseURL = "https://drive.proton.me"

// idLength is the length of "<token>#<key>" (10 + 1 + 12).
const idLength = 23

var (
	idPattern      = regexp.MustCompile(`^\w{10}#\w{12}$`)
	embeddedIDExpr = regexp.MustCompile(`[A-Za-z0-9]+#[A-Za-z0-9]+`)
)

// Target identifies one share to process.
type Target struct {
	// ID is the "<token>#<key>" pair from the share link.
	ID string `json:"id"`
	// Token is the part of ID before '#', used by the web API.
	Token string `json:"token"`
	// URL is the normalized share link.
	URL string `json:"url"`
	// Password unlocks protected shares. Ignored when no challenge appears.
	Password string `json:"-"`
}

// ParseTarget accepts a bare share ID or any string ending in one (usually a
// full share URL) and returns the normalized target.
func ParseTarget(baseURL, input string) (Target, error) {
	input = strings.TrimSpace(input)
	var id string
	switch {
	case len(input) >= idLength && idPattern.MatchString(input[len(input)-idLength:]):
		id = input[len(input)-idLength:]
	case idPattern.MatchString(input):
		id = input
	default:
		return Target{}, fmt.Errorf("invalid share URL/ID: %q", input)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Target{
		ID:    id,
		Token: strings.SplitN(id, "#", 2)[0],
		URL:   strings.TrimRight(baseURL, "/") + "/urls/" + id,
	}, nil
}

// ParseTargets parses every input, skipping invalid ones with a warning and
// collapsing duplicates while keeping first-seen order.
func ParseTargets(baseURL string, inputs []string, password string) []Target {
	seen := make(map[string]struct{}, len(inputs))
	out := make([]Target, 0, len(inputs))
	for _, in := range inputs {
		t, err := ParseTarget(baseURL, in)
		if err != nil {
			slog.Warn("skipping invalid URL/ID", "input", in)
			continue
		}
		if _, dup := seen[t.URL]; dup {
			continue
		}
		seen[t.URL] = struct{}{}
		t.Password = password
		out = append(out, t)
	}
	return out
}

// IDFromURL extracts the share ID from a page URL, or "" if none is present.
func IDFromURL(url string) string {
	return embeddedIDExpr.FindString(url)
}
