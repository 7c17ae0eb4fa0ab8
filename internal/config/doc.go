// Package config loads and validates the TOML configuration shared by all
// tractus commands. Defaults are overlaid by an optional config file, paths
// are tilde- and env-expanded, and tool binaries are resolved against the
// configured FSL and FreeSurfer installation roots.
package config
