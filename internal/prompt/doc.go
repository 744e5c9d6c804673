// Package prompt deterministically builds the instruction payload for the
// generative model: a canonical serialization of the parsed template, the
// enumerated conversion rule set, and on retry the diagnostics of the
// previous attempt. Identical inputs always produce a byte-identical prompt.
package prompt
