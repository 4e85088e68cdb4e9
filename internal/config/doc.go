// Package config loads the channel client configuration from YAML.
//
// Values wrapped in ${VAR} are expanded from the environment before
// parsing, so secrets stay out of the file itself.
package config
