// Package config loads the YAML configuration of the back and pusher
// binaries. Values may reference environment variables as ${VAR}.
package config
