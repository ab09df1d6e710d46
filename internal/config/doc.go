// Package config loads engine configuration from an optional yaml file and
// EDITTRAIL_* environment variables, with defaults that work out of the box.
package config
