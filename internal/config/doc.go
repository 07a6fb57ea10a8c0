// Package config loads, normalizes, and validates bluestar configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GITHUB_TOKEN and the provider-specific API key variables. A .env file in the
// working directory is loaded before the environment is consulted.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, resolved provider defaults, and clear validation errors.
package config
