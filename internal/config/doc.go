// Package config loads the daemon configuration.
//
// Sources are layered: built-in defaults, then an optional YAML file, then
// an optional .env file, then MUEZZIN_* environment variables. The result is
// validated against an embedded CUE schema.
package config
