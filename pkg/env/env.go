// Package env reads the few settings that are needed before config.Load runs
// or that deployment platforms inject without the SHOPFRONT_ prefix.
package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// First returns the first non-blank value among keys.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := Get(key, ""); val != "" {
			return val
		}
	}
	return fallback
}

// Secret reads a value that must not be passed on the command line.
// It prefers <key>_FILE so container secrets can be mounted as files.
func Secret(key string) (string, error) {
	if path := Get(key+"_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(raw), "\r\n"), nil
	}
	return os.Getenv(key), nil
}
