// Package config defines the validated configuration record produced by
// the command-line resolver and consumed by the driver and the
// optimization engine. The record is built once per run and treated as
// immutable afterwards; there is no process-global option state.
package config
