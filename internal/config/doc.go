// Package config loads, normalizes, and validates libconv configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the CALIBRE_LIBRARY environment
// fallback. The Config type centralizes the library location, the format
// preference policy, tool binaries, timeouts, and logging settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, lower-cased format tags, and clear validation errors.
package config
