// Package config loads, normalizes, and validates reelnotes configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GEMINI_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, from the watched queue file and vault layout to external tool and
// API settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
