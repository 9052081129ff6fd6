// Package config is a thin wrapper around pkg/config for command-line
// entrypoints: it loads the YAML files that live alongside this package
// and exposes the result via a package-scoped AppConfig, the same
// convenience pkg/config.AppConfig offers at the library level.
package config

import (
	pkgconfig "github.com/agentworld/runtime/pkg/config"
)

// AppConfig holds the currently loaded configuration for command line
// utilities. It mirrors pkg/config.AppConfig but is scoped to this
// package for convenience when writing CLI tools and tests.
var AppConfig pkgconfig.Config

// LoadConfig loads the configuration for the given environment name and
// stores it in AppConfig. Any errors during loading cause a panic, which
// is acceptable for command line initialisation where failure should
// abort execution.
func LoadConfig(env string) {
	cfg, err := pkgconfig.Load(env)
	if err != nil {
		panic(err)
	}
	AppConfig = *cfg
}
