// Package hcl provides the HCL implementation of config.Loader. It is
// responsible for file discovery, parsing, evaluation of `${env.NAME}`
// references, and translation of `subgraph` blocks into the config model.
package hcl
