// Package config loads, normalizes, and validates lantern configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and anchors relative directories at the
// config file location so a project can be built from any working directory.
// The Config type centralizes every knob the CLI and build pipeline need:
// watched directories, derivative profiles, gallery sidecar settings, and
// logging options.
//
// Always obtain settings through this package so downstream code receives
// absolute paths and validated profile definitions.
package config
