// Package app contains the core driver logic. It owns the status reporter
// and the log file, hands files to the optimization engine one at a time,
// and renders the end-of-run summary, decoupled from any specific
// entrypoint like a CLI.
package app
