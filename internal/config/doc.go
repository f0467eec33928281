// Package config loads, normalizes, and validates acrscan configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the ACRCLOUD_ACCESS_KEY, ACRCLOUD_ACCESS_SECRET and
// ACRCLOUD_HOST environment fallbacks. Credentials are not required to load a
// config; commands that call the identify endpoint check them explicitly.
package config
