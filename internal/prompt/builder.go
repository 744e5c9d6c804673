package prompt

import (
	"fmt"
	"strings"

	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/tfmap"
	"github.com/vk/tfconvert/internal/validate"
)

// Builder assembles the instruction text sent to the model. The same
// template and diagnostic history always produce byte-identical output.
type Builder struct {
	table *tfmap.Table
}

func NewBuilder(table *tfmap.Table) *Builder {
	return &Builder{table: table}
}

// Build renders the full prompt for one conversion attempt. prior holds the
// diagnostics from the previous attempt's failed validation; it is empty on
// the first attempt.
func (b *Builder) Build(tpl *cfn.Template, prior []validate.Diagnostic) string {
	var sb strings.Builder

	sb.WriteString(header)
	sb.WriteString("\n\n## CloudFormation template\n\n```json\n")
	sb.WriteString(serializeTemplate(tpl))
	sb.WriteString("\n```\n")

	if len(tpl.DeploymentOrder) > 0 {
		sb.WriteString("\n## Deployment order\n\nDeclare the resources in this dependency order:\n\n")
		for i, id := range tpl.DeploymentOrder {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, id)
		}
	}

	sb.WriteString("\n## Intrinsic function translation\n\n")
	for _, line := range intrinsicRules {
		sb.WriteString("- ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	sb.WriteString("\n## Resource translation\n\n")
	for _, line := range resourceRules {
		sb.WriteString("- ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	sb.WriteString("\n## Supported resource types\n\n")
	sb.WriteString("Prefer these exact Terraform types; for CloudFormation types not listed, emit your best equivalent and flag it with a `# TODO: verify resource type` comment:\n\n")
	for _, cfnType := range b.table.SupportedTypes() {
		tfType, _ := b.table.ResourceType(cfnType)
		fmt.Fprintf(&sb, "- %s => %s\n", cfnType, tfType)
	}

	if renamed := b.table.RenamedTypes(); len(renamed) > 0 {
		sb.WriteString("\n## Attribute renames\n\nCloudFormation property names that differ from the Terraform attribute:\n\n")
		for _, tfType := range renamed {
			for _, pair := range b.table.SortedRenames(tfType) {
				fmt.Fprintf(&sb, "- %s: %s => %s\n", tfType, pair[0], pair[1])
			}
		}
	}

	if extra := b.table.ExtraRules(); len(extra) > 0 {
		sb.WriteString("\n## Additional rules\n\n")
		for _, line := range extra {
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}

	if len(prior) > 0 {
		sb.WriteString("\n## Previous attempt\n\nYour previous attempt failed validation with:\n\n")
		for _, diag := range prior {
			sb.WriteString("- ")
			sb.WriteString(diag.String())
			sb.WriteByte('\n')
		}
		sb.WriteString("\nFix every listed problem in this attempt.\n")
	}

	sb.WriteString("\n" + footer + "\n")
	return sb.String()
}

const header = `You are an expert infrastructure engineer. Convert the CloudFormation template below into Terraform HCL targeting the AWS provider.`

const footer = `Respond with ONLY the Terraform HCL configuration. Do not include explanations, markdown fences, or any text outside the configuration.`

var intrinsicRules = []string{
	"`Ref` to a parameter becomes `var.<snake_case_name>`.",
	"`Ref` to a resource becomes `<terraform_type>.<snake_case_name>.id`.",
	"`Fn::GetAtt` becomes `<terraform_type>.<snake_case_name>.<snake_case_attribute>`.",
	"`Fn::Sub` becomes a Terraform interpolated string; translate each `${...}` placeholder like the equivalent Ref or GetAtt.",
	"`Fn::Join` becomes `join(delimiter, [...])` or string interpolation when simpler.",
	"`Fn::Select` over `Fn::GetAZs` becomes `element(data.aws_availability_zones.available.names, index)` and requires the matching data source.",
	"`Fn::Cidr` becomes `cidrsubnets` or `cidrsubnet` with equivalent arguments.",
	"`Fn::If` becomes a conditional expression over a boolean local or variable.",
	"`Fn::FindInMap` becomes a lookup into a `locals` map defined from the template Mappings.",
	"`Fn::ImportValue` becomes a `data.terraform_remote_state` reference or an input variable; prefer a variable with a descriptive name.",
	"Pseudo parameters: `AWS::Region` => `data.aws_region.current.name`, `AWS::AccountId` => `data.aws_caller_identity.current.account_id`, `AWS::Partition` => `data.aws_partition.current.partition`, `AWS::URLSuffix` => `data.aws_partition.current.dns_suffix`, `AWS::StackName` => `var.stack_name`.",
	"Declare every data source you reference.",
}

var resourceRules = []string{
	"Name each resource with the snake_case form of its logical ID.",
	"Declare one `variable` block per template parameter, carrying its description and default; mark `NoEcho` parameters `sensitive = true`.",
	"Declare one `output` block per template output.",
	"Security group rules: place `ingress` and `egress` as nested blocks inside `aws_security_group`, never as top-level attributes.",
	"`source_security_group_id` referring to the enclosing security group becomes `self = true` inside the rule block.",
	"IAM managed policy ARNs attach via `aws_iam_role_policy_attachment` resources, not an inline list attribute.",
	"Launch templates: network settings go in a `network_interfaces` block.",
	"Attributes that take a list in Terraform keep their plural form, e.g. `vpc_security_group_ids`, `subnet_ids`.",
	"Inline user data becomes a `templatefile` or heredoc; keep the script content intact.",
	"Reference files relative to the module with a `${path.module}/` prefix.",
	"Honor `DependsOn` with `depends_on` only when no attribute reference already implies the ordering.",
	"Do not emit `provider`, `terraform`, or backend configuration blocks.",
}
