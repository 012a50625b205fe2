// Package config loads, normalizes, and validates boldrank configuration.
//
// Configuration lives in TOML and is resolved from an explicit path,
// ~/.config/boldrank/config.toml, or ./boldrank.toml, in that order. Load
// applies defaults, expands ~ in path fields, honours the BOLDRANK_DB and
// BOLDRANK_LOG_LEVEL environment overrides, and validates the image checker,
// criterion, and ranking sections before any command runs.
package config
