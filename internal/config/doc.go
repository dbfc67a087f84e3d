// Package config loads bot settings from the environment, with an optional
// .env file for local runs.
package config
