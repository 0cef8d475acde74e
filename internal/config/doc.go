// Package config provides configuration structures and utilities for a11yscan.
// It defines the discovery, selection and scan options, their defaults and
// validation, the optional .a11yscan YAML file (per-site crawl settings,
// classifier overrides, analyzer adapters, critical paths) and the XDG
// directories used for the session database.
package config
