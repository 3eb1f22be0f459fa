// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Variables may come from a .env file loaded with LoadDotEnv before Load.
// See configs/syncer.example.yaml for the full schema.
package config
