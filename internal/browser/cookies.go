package browser

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

const httpOnlyPrefix = "#HttpOnly_"

// ParseNetscapeCookies converts a Netscape/curl cookie file into CDP cookie
// parameters. Comment lines are skipped, except for the "#HttpOnly_" domain
// prefix written by curl and most browser exporters. Lines that do not have
// seven tab-separated fields are reported in skipped.
func ParseNetscapeCookies(content string) (cookies []*network.CookieParam, skipped int) {
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		c, err := parseCookieLine(line)
		if err != nil {
			skipped++
			continue
		}
		c.HTTPOnly = httpOnly
		cookies = append(cookies, c)
	}
	return cookies, skipped
}

func parseCookieLine(line string) (*network.CookieParam, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 7 {
		return nil, fmt.Errorf("cookie line has %d fields, want 7", len(fields))
	}
	domain, path, secure, expires, name := fields[0], fields[2], fields[3], fields[4], fields[5]
	value := strings.Join(fields[6:], "\t")
	if domain == "" || name == "" {
		return nil, fmt.Errorf("cookie line missing domain or name")
	}

	c := &network.CookieParam{
		Name:   name,
		Value:  value,
		Domain: domain,
		Path:   path,
		Secure: strings.EqualFold(secure, "TRUE"),
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if exp, err := strconv.ParseInt(strings.TrimSpace(expires), 10, 64); err == nil && exp > 0 {
		ts := cdp.TimeSinceEpoch(time.Unix(exp, 0))
		c.Expires = &ts
	}
	return c, nil
}
