package fix

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/tfmap"
)

// parseForRewrite parses the document for structural editing. A document
// that does not parse yet simply skips the structural rule; the validator
// will report the syntax errors and drive a retry.
func parseForRewrite(text, ruleID string) (*hclwrite.File, []string) {
	file, diags := hclwrite.ParseConfig([]byte(text), "generated.tf", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, []string{fmt.Sprintf("rule %s skipped: document does not parse as HCL", ruleID)}
	}
	return file, nil
}

// renameAttributesRule rewrites attribute names that the model gets wrong in
// a systematic way (mostly singular/plural drift), using the static rename
// table keyed by (resource type, old name). Nested blocks are covered too.
type renameAttributesRule struct {
	table *tfmap.Table
}

func (r *renameAttributesRule) ID() string { return "attribute-renames" }

func (r *renameAttributesRule) Apply(_ context.Context, text string, _ *cfn.Template) (string, []string, []string) {
	file, notes := parseForRewrite(text, r.ID())
	if file == nil {
		return text, nil, notes
	}

	var subjects []string
	for _, block := range file.Body().Blocks() {
		if block.Type() != "resource" || len(block.Labels()) != 2 {
			continue
		}
		renames := r.table.Renames(block.Labels()[0])
		if len(renames) == 0 {
			continue
		}
		if renameInBody(block.Body(), renames) {
			subjects = append(subjects, block.Labels()[0]+"."+block.Labels()[1])
		}
	}
	if len(subjects) == 0 {
		return text, nil, notes
	}
	return string(file.Bytes()), subjects, notes
}

func renameInBody(body *hclwrite.Body, renames map[string]string) bool {
	changed := false
	for oldName, newName := range renames {
		if attr := body.GetAttribute(oldName); attr != nil && body.GetAttribute(newName) == nil {
			tokens := attr.Expr().BuildTokens(nil)
			body.RemoveAttribute(oldName)
			body.SetAttributeRaw(newName, tokens)
			changed = true
		}
	}
	for _, nested := range body.Blocks() {
		if renameInBody(nested.Body(), renames) {
			changed = true
		}
	}
	return changed
}

// ingressNestingRule moves a source_security_group_id attribute that the
// model misplaced at the aws_security_group resource level into the ingress
// blocks where the provider schema expects it.
type ingressNestingRule struct{}

func (r *ingressNestingRule) ID() string { return "security-group-ingress-nesting" }

func (r *ingressNestingRule) Apply(_ context.Context, text string, _ *cfn.Template) (string, []string, []string) {
	file, notes := parseForRewrite(text, r.ID())
	if file == nil {
		return text, nil, notes
	}

	var subjects []string
	for _, block := range file.Body().Blocks() {
		if block.Type() != "resource" || len(block.Labels()) != 2 || block.Labels()[0] != "aws_security_group" {
			continue
		}
		body := block.Body()
		attr := body.GetAttribute("source_security_group_id")
		if attr == nil {
			continue
		}

		tokens := attr.Expr().BuildTokens(nil)
		moved := false
		for _, nested := range body.Blocks() {
			if nested.Type() != "ingress" && nested.Type() != "egress" {
				continue
			}
			if nested.Body().GetAttribute("source_security_group_id") == nil {
				nested.Body().SetAttributeRaw("source_security_group_id", tokens)
			}
			moved = true
		}
		if moved {
			body.RemoveAttribute("source_security_group_id")
			subjects = append(subjects, "aws_security_group."+block.Labels()[1])
		} else {
			notes = append(notes, fmt.Sprintf(
				"aws_security_group.%s has a resource-level source_security_group_id but no ingress/egress block to move it into",
				block.Labels()[1]))
		}
	}
	if len(subjects) == 0 {
		return text, nil, notes
	}
	return string(file.Bytes()), subjects, notes
}

// selfReferenceRule rewrites a security-group rule whose
// source_security_group_id names its own resource into the provider's
// self-referential form (`self = true`).
type selfReferenceRule struct{}

func (r *selfReferenceRule) ID() string { return "self-reference-accessor" }

func (r *selfReferenceRule) Apply(_ context.Context, text string, _ *cfn.Template) (string, []string, []string) {
	file, notes := parseForRewrite(text, r.ID())
	if file == nil {
		return text, nil, notes
	}

	var subjects []string
	for _, block := range file.Body().Blocks() {
		if block.Type() != "resource" || len(block.Labels()) != 2 || block.Labels()[0] != "aws_security_group" {
			continue
		}
		selfAddr := "aws_security_group." + block.Labels()[1]
		changed := false
		for _, nested := range block.Body().Blocks() {
			if nested.Type() != "ingress" && nested.Type() != "egress" {
				continue
			}
			attr := nested.Body().GetAttribute("source_security_group_id")
			if attr == nil {
				continue
			}
			expr := strings.TrimSpace(string(attr.Expr().BuildTokens(nil).Bytes()))
			if expr == selfAddr+".id" || expr == selfAddr+".group_id" {
				nested.Body().RemoveAttribute("source_security_group_id")
				nested.Body().SetAttributeValue("self", cty.True)
				changed = true
			}
		}
		if changed {
			subjects = append(subjects, selfAddr)
		}
	}
	if len(subjects) == 0 {
		return text, nil, notes
	}
	return string(file.Bytes()), subjects, notes
}

// missingDataSourceRule declares the data sources the generated expressions
// rely on when the model referenced them without declaring them.
type missingDataSourceRule struct{}

var dataSourceUsePattern = regexp.MustCompile(`\bdata\.(aws_availability_zones|aws_caller_identity|aws_region|aws_partition)\.([A-Za-z_][A-Za-z0-9_]*)`)

func (r *missingDataSourceRule) ID() string { return "declare-missing-data-sources" }

func (r *missingDataSourceRule) Apply(_ context.Context, text string, _ *cfn.Template) (string, []string, []string) {
	file, notes := parseForRewrite(text, r.ID())
	if file == nil {
		return text, nil, notes
	}

	declared := make(map[string]bool)
	for _, block := range file.Body().Blocks() {
		if block.Type() == "data" && len(block.Labels()) == 2 {
			declared[block.Labels()[0]+"."+block.Labels()[1]] = true
		}
	}

	seen := make(map[string]bool)
	var subjects []string
	for _, match := range dataSourceUsePattern.FindAllStringSubmatch(text, -1) {
		addr := match[1] + "." + match[2]
		if declared[addr] || seen[addr] {
			continue
		}
		seen[addr] = true

		file.Body().AppendNewline()
		block := file.Body().AppendNewBlock("data", []string{match[1], match[2]})
		if match[1] == "aws_availability_zones" {
			block.Body().SetAttributeValue("state", cty.StringVal("available"))
		}
		subjects = append(subjects, "data."+addr)
	}
	if len(subjects) == 0 {
		return text, nil, notes
	}
	return string(file.Bytes()), subjects, notes
}
