// Package tfmap holds the translation tables shared by the prompt builder,
// the post-processing rules and the report generator: the supported
// CloudFormation resource type → Terraform resource type mapping, the
// attribute rename table keyed by (resource type, old name), and the pseudo
// parameter → Terraform expression mapping.
//
// The tables are data, not logic. Their correctness is empirical and drifts
// as provider schemas change, so organizations can extend them at runtime
// through a YAML override file instead of patching the binary.
package tfmap
