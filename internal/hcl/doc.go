// Package hcl provides the HCL implementation of config.Loader. It is
// responsible for file discovery, parsing, expression evaluation and the
// translation of `experiment` blocks into the format-agnostic model. It can
// also render a model back into HCL for starter files.
package hcl
