package config

import (
	"strings"
)

// ConfigError reports required settings that are absent or malformed.
// It is fatal: the service refuses to start rather than run with partial
// credentials.
type ConfigError struct {
	Missing []string
	Invalid []string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(e.Invalid, "; "))
	}
	if len(parts) == 0 {
		return "invalid configuration"
	}
	return strings.Join(parts, "; ")
}

func (e *ConfigError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}
