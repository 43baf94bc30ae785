// Package config defines the format-agnostic composition configuration: the
// list of subgraphs to compose, where their schemas come from, and the
// Loader interface implemented by the HCL and YAML front ends.
//
// The `config.Model` is the single input of the `app` package. Concrete
// loaders live in separate packages.
package config
