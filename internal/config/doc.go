// Package config loads, normalizes, and validates filer configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FILER_STORAGE_ROOT and FILER_NTFY_TOPIC. The Config type centralizes every
// knob the daemon and CLI need: storage roots, matcher cache and regex limits,
// conflict policy, watcher timings, and notification settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
