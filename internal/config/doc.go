// Package config loads, validates, and normalizes the ripwatch TOML
// configuration. Paths are tilde-expanded and made absolute during load so
// downstream components never deal with relative or user-shorthand paths.
package config
