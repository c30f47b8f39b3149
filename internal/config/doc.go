// Package config loads, normalizes, and validates loom configuration.
//
// Configuration is read from TOML (default ~/.config/loom/config.toml or a
// project-local loom.toml), merged over repository defaults, and checked
// before any subsystem starts. Path fields are expanded and absolute in the
// returned Config. A handful of secrets (api_token) may also arrive via
// environment variables so deployments can keep them out of the file.
package config
