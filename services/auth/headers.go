package auth

import (
	"fmt"
	"strings"
	"time"

	"gongbridge/models"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// RequestHeaders assembles the header set for an authenticated Gong request:
// the standard browser-shaped headers plus a Cookie header containing every
// unexpired token and every recorded session cookie exactly once.
//
// Accept-Encoding is deliberately absent: setting it by hand disables the
// transport's transparent gzip handling, leaving response bodies compressed.
func RequestHeaders(s models.Session, now time.Time) map[string]string {
	headers := map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Connection":      "keep-alive",
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-origin",
	}

	var parts []string
	for _, t := range s.UnexpiredTokens(now) {
		parts = append(parts, fmt.Sprintf("%s=%s", t.Kind, t.Raw))
	}
	for name, value := range s.Cookies {
		if value != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", name, value))
		}
	}
	if len(parts) > 0 {
		headers["Cookie"] = strings.Join(parts, "; ")
	}

	return headers
}

// BaseURL returns the cell-pinned API origin for the session, falling back to
// the generic app host when the session carries no cell.
func BaseURL(s models.Session) string {
	if s.CellID != "" {
		return fmt.Sprintf("https://%s.app.gong.io", s.CellID)
	}
	return "https://app.gong.io"
}
