// Package config defines the format-agnostic experiment model and the
// Loader interface that concrete formats implement.
//
// The `config.Model` is the single source of truth for the `app` package.
// Concrete loaders, such as the HCL one, live in separate packages.
package config
