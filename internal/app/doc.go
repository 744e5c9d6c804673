// Package app contains the core application logic. It discovers the
// templates to convert, fans them out over a bounded worker pool, and
// writes the Terraform output and conversion report for each one,
// decoupled from any specific entrypoint like a CLI.
package app
