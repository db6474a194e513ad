// Package config holds the start-up configuration for the calstats service.
//
// Configuration is assembled once in the serve command from command-line
// flags and environment variables, validated, and then passed by value into
// the components that need it. A missing credential is a fatal start-up
// error (ConfigError); nothing is read from the environment per request.
package config
