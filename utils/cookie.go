package utils

import "strings"

// ParseCookieHeader splits a Cookie request header into name/value pairs.
// Malformed fragments (no '=', empty name) are dropped rather than reported;
// captures from browser tooling are frequently sloppy. Later duplicates win.
func ParseCookieHeader(header string) map[string]string {
	pairs := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		pairs[name] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return pairs
}
