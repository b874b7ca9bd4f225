package config

import (
	"os"
	"strings"
)

// ResolveSecret expands "env:NAME" and "file:/path" references. Plain values
// are returned trimmed; unresolvable references yield "".
func ResolveSecret(value string) string {
	if value == "" {
		return ""
	}
	value = strings.TrimSpace(value)
	if name, ok := strings.CutPrefix(value, "env:"); ok {
		return os.Getenv(name)
	}
	if path, ok := strings.CutPrefix(value, "file:"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}
	return value
}
