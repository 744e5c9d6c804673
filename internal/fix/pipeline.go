package fix

import (
	"context"

	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/ctxlog"
	"github.com/vk/tfconvert/internal/tfmap"
)

// Rule is one deterministic, idempotent repair. Apply returns the possibly
// modified text, the Terraform addresses (or logical IDs) it touched, and
// any unresolved notes for defects it recognized but could not repair.
type Rule interface {
	ID() string
	Apply(ctx context.Context, text string, tpl *cfn.Template) (out string, subjects []string, notes []string)
}

// Change records one rule that modified the document and what it touched.
type Change struct {
	Rule     string
	Subjects []string
}

// Outcome is the result of one full pipeline run.
type Outcome struct {
	Text    string
	Changes []Change
	Notes   []string
}

// AppliedRules returns the IDs of the rules that modified the text, in
// pipeline order.
func (o Outcome) AppliedRules() []string {
	out := make([]string, 0, len(o.Changes))
	for _, c := range o.Changes {
		out = append(out, c.Rule)
	}
	return out
}

// Pipeline is the fixed, ordered rule set for one conversion run.
type Pipeline struct {
	rules []Rule
}

// NewPipeline assembles the standard rule order. Textual rules run first so
// that intrinsic residues that would break the HCL parse are cleared before
// the structural (hclwrite-based) rules run.
func NewPipeline(table *tfmap.Table) *Pipeline {
	return &Pipeline{rules: []Rule{
		&stripFencesRule{},
		&intrinsicResidueRule{table: table},
		&modulePathRule{},
		&renameAttributesRule{table: table},
		&ingressNestingRule{},
		&selfReferenceRule{},
		&missingDataSourceRule{},
	}}
}

// Rules exposes the pipeline's rules in order, primarily for tests.
func (p *Pipeline) Rules() []Rule {
	return p.rules
}

// Run applies every rule in order and collects changes and notes.
func (p *Pipeline) Run(ctx context.Context, text string, tpl *cfn.Template) Outcome {
	logger := ctxlog.FromContext(ctx)

	outcome := Outcome{Text: text}
	for _, rule := range p.rules {
		next, subjects, notes := rule.Apply(ctx, outcome.Text, tpl)
		if next != outcome.Text {
			logger.Debug("Fix rule modified document.", "rule", rule.ID(), "subjects", subjects)
			outcome.Changes = append(outcome.Changes, Change{Rule: rule.ID(), Subjects: subjects})
		}
		outcome.Text = next
		outcome.Notes = append(outcome.Notes, notes...)
	}
	return outcome
}
