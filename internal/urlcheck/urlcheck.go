// Package urlcheck decides whether a phrase looks like something a browser can open.
package urlcheck

import (
	"regexp"
	"strings"
)

var schemes = []string{"http://", "https://", "ftp://", "file://"}

// host labels, an alphabetic TLD, optional port and path/query
var hostPattern = regexp.MustCompile(`^(?i)([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}(:[0-9]{1,5})?([/?#].*)?$`)

// IsURL reports whether text is URL-shaped.
func IsURL(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \t\n") {
		return false
	}
	lower := strings.ToLower(text)
	for _, scheme := range schemes {
		if strings.HasPrefix(lower, scheme) {
			return len(text) > len(scheme)
		}
	}
	return hostPattern.MatchString(text)
}
