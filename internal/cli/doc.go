// Package cli is responsible for resolving command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates option tokens into the application's internal configuration.
//
// Resolution does not use the standard flag package: options may be
// abbreviated to any unambiguous prefix, values may be juxtaposed against
// short option names ("-o3", "-zc6-9"), and filenames may be interleaved
// with options anywhere on the line. The option table in table.go encodes
// the per-name minimum abbreviation lengths that keep prefixes unambiguous.
package cli
