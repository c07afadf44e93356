package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

const previewBytes = 512

// bodyAttr groups a bounded preview of an API response body for debug logs.
// Bodies over previewBytes also carry the sha256 of the full body.
func bodyAttr(body []byte) slog.Attr {
	if len(body) <= previewBytes {
		return slog.Group("body", "size", len(body), "preview", string(body))
	}
	sum := sha256.Sum256(body)
	return slog.Group("body",
		"size", len(body),
		"preview", string(body[:previewBytes]),
		"sha256", hex.EncodeToString(sum[:]),
	)
}
