// Package fix is the deterministic post-processing pipeline that repairs
// known systematic defects in model-translated Terraform text. The pipeline
// is a fixed, ordered list of independent rules; each rule is idempotent and
// the whole pipeline is a fixed point, so re-running it on a later attempt
// can never change an already-corrected document.
//
// A rule that cannot apply (for example because the text does not parse as
// HCL yet) is a no-op that records an unresolved note; rules never fail the
// conversion run.
package fix
