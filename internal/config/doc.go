// Package config defines the application configuration structure and the
// loading logic that populates it from defaults, an optional config file
// and LINKHIVE_-prefixed environment variables.
package config
