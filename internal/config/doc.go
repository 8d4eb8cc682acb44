// Package config loads the YAML configuration of the Limoo listener.
//
// Values may reference environment variables as ${VAR}; they are expanded
// before parsing, which keeps access tokens and database passwords out of
// the file itself.
package config
