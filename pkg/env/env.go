// Package env reads process environment values that sit outside the typed
// terminal configuration, such as log formatting toggles.
package env

import "os"

// Get returns the named variable's value, or fallback when it is unset or
// empty. Empty counts as unset so a blank line in a terminal's .env does not
// silence a default.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
