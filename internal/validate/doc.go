// Package validate checks post-processed Terraform text. Three phases run
// in order: HCL syntax parsing, reference resolution against the
// declarations in the same document, and an optional canonical-formatting
// check. The first failing phase short-circuits the remaining phases, but
// every diagnostic of the failing phase is collected and returned together.
package validate
