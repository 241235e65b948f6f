// Package config loads the keygate server configuration from a YAML file.
//
// Environment variables referenced as ${VAR_NAME} in the file are expanded
// before parsing, so secrets like the JWT signing key can stay out of the
// config file itself. Duration-valued settings are written as Go duration
// strings ("5m", "24h") and parsed after unmarshaling.
package config
