package identity

import "strings"

// IsApplicationScope reports whether s has the "<resource>/.default" shape
// required by the client-credential grant.
func IsApplicationScope(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, "/.default") && len(s) > len("/.default")
}
