package tfmap

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Table carries the active translation tables for one conversion run.
type Table struct {
	resourceTypes map[string]string
	renames       map[string]map[string]string
	extraRules    []string
}

// defaultResourceTypes maps the bounded set of supported CloudFormation
// resource types to their AWS provider v5+ counterparts. Types outside this
// table are flagged Unmapped, never guessed.
var defaultResourceTypes = map[string]string{
	"AWS::EC2::VPC":                             "aws_vpc",
	"AWS::EC2::Subnet":                          "aws_subnet",
	"AWS::EC2::InternetGateway":                 "aws_internet_gateway",
	"AWS::EC2::VPCGatewayAttachment":            "aws_internet_gateway_attachment",
	"AWS::EC2::NatGateway":                      "aws_nat_gateway",
	"AWS::EC2::EIP":                             "aws_eip",
	"AWS::EC2::RouteTable":                      "aws_route_table",
	"AWS::EC2::Route":                           "aws_route",
	"AWS::EC2::SubnetRouteTableAssociation":     "aws_route_table_association",
	"AWS::EC2::SecurityGroup":                   "aws_security_group",
	"AWS::EC2::SecurityGroupIngress":            "aws_security_group_rule",
	"AWS::EC2::SecurityGroupEgress":             "aws_security_group_rule",
	"AWS::EC2::Instance":                        "aws_instance",
	"AWS::EC2::LaunchTemplate":                  "aws_launch_template",
	"AWS::EC2::KeyPair":                         "aws_key_pair",
	"AWS::AutoScaling::AutoScalingGroup":        "aws_autoscaling_group",
	"AWS::ElasticLoadBalancingV2::LoadBalancer": "aws_lb",
	"AWS::ElasticLoadBalancingV2::TargetGroup":  "aws_lb_target_group",
	"AWS::ElasticLoadBalancingV2::Listener":     "aws_lb_listener",
	"AWS::RDS::DBInstance":                      "aws_db_instance",
	"AWS::RDS::DBSubnetGroup":                   "aws_db_subnet_group",
	"AWS::S3::Bucket":                           "aws_s3_bucket",
	"AWS::S3::BucketPolicy":                     "aws_s3_bucket_policy",
	"AWS::IAM::Role":                            "aws_iam_role",
	"AWS::IAM::Policy":                          "aws_iam_role_policy",
	"AWS::IAM::InstanceProfile":                 "aws_iam_instance_profile",
	"AWS::SNS::Topic":                           "aws_sns_topic",
	"AWS::SQS::Queue":                           "aws_sqs_queue",
	"AWS::Logs::LogGroup":                       "aws_cloudwatch_log_group",
	"AWS::CloudWatch::Alarm":                    "aws_cloudwatch_metric_alarm",
	"AWS::Lambda::Function":                     "aws_lambda_function",
	"AWS::DynamoDB::Table":                      "aws_dynamodb_table",
	"AWS::KMS::Key":                             "aws_kms_key",
	"AWS::SecretsManager::Secret":               "aws_secretsmanager_secret",
}

// defaultRenames is the attribute rename table: (terraform resource type,
// wrong attribute the model tends to emit) → correct attribute. Tuned
// empirically against AWS provider v5 schemas.
var defaultRenames = map[string]map[string]string{
	"aws_db_instance": {
		"security_group_ids":  "vpc_security_group_ids",
		"vpc_security_groups": "vpc_security_group_ids",
	},
	"aws_lb": {
		"security_group": "security_groups",
	},
	"aws_elb": {
		"security_group": "security_groups",
	},
	"aws_instance": {
		"security_group_ids": "vpc_security_group_ids",
	},
	"aws_autoscaling_group": {
		"vpc_zone_identifiers": "vpc_zone_identifier",
	},
	"aws_db_subnet_group": {
		"subnet_id": "subnet_ids",
	},
}

// pseudoParameterExprs maps CloudFormation pseudo parameters to the
// Terraform expression that yields the same value.
var pseudoParameterExprs = map[string]string{
	"AWS::Region":    "data.aws_region.current.name",
	"AWS::AccountId": "data.aws_caller_identity.current.account_id",
	"AWS::Partition": "data.aws_partition.current.partition",
	"AWS::URLSuffix": "data.aws_partition.current.dns_suffix",
	"AWS::StackName": "var.stack_name",
}

// Overrides is the organization-specific extension surface, loaded from a
// YAML file passed on the command line.
type Overrides struct {
	// ResourceTypes adds or replaces CloudFormation → Terraform type
	// mappings.
	ResourceTypes map[string]string `yaml:"resource_types"`
	// Renames adds or replaces attribute renames per Terraform type.
	Renames map[string]map[string]string `yaml:"renames"`
	// ExtraRules are free-form instruction lines appended to the prompt.
	ExtraRules []string `yaml:"extra_rules"`
}

// LoadOverrides reads and parses a YAML override file.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rule overrides: %w", err)
	}
	var ov Overrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("parse rule overrides %q: %w", path, err)
	}
	return &ov, nil
}

// New builds the active table from the defaults merged with the optional
// overrides. Overrides win on conflict.
func New(ov *Overrides) *Table {
	t := &Table{
		resourceTypes: make(map[string]string, len(defaultResourceTypes)),
		renames:       make(map[string]map[string]string, len(defaultRenames)),
	}
	for k, v := range defaultResourceTypes {
		t.resourceTypes[k] = v
	}
	for res, m := range defaultRenames {
		t.renames[res] = make(map[string]string, len(m))
		for k, v := range m {
			t.renames[res][k] = v
		}
	}

	if ov != nil {
		for k, v := range ov.ResourceTypes {
			t.resourceTypes[k] = v
		}
		for res, m := range ov.Renames {
			if t.renames[res] == nil {
				t.renames[res] = make(map[string]string, len(m))
			}
			for k, v := range m {
				t.renames[res][k] = v
			}
		}
		t.extraRules = append(t.extraRules, ov.ExtraRules...)
	}
	return t
}

// ResourceType returns the Terraform resource type for a CloudFormation
// type, and whether the type is in the supported set.
func (t *Table) ResourceType(cfnType string) (string, bool) {
	tf, ok := t.resourceTypes[cfnType]
	return tf, ok
}

// SupportedTypes returns the sorted list of CloudFormation resource types
// in the active table.
func (t *Table) SupportedTypes() []string {
	out := make([]string, 0, len(t.resourceTypes))
	for cfnType := range t.resourceTypes {
		out = append(out, cfnType)
	}
	sort.Strings(out)
	return out
}

// Renames returns the rename table for one Terraform resource type; the
// result may be nil.
func (t *Table) Renames(tfType string) map[string]string {
	return t.renames[tfType]
}

// RenamedTypes returns the sorted list of Terraform types that have rename
// entries.
func (t *Table) RenamedTypes() []string {
	out := make([]string, 0, len(t.renames))
	for tfType := range t.renames {
		out = append(out, tfType)
	}
	sort.Strings(out)
	return out
}

// SortedRenames returns each rename entry for one Terraform type as sorted
// (old, new) pairs, for deterministic prompt serialization.
func (t *Table) SortedRenames(tfType string) [][2]string {
	m := t.renames[tfType]
	olds := make([]string, 0, len(m))
	for old := range m {
		olds = append(olds, old)
	}
	sort.Strings(olds)

	out := make([][2]string, 0, len(olds))
	for _, old := range olds {
		out = append(out, [2]string{old, m[old]})
	}
	return out
}

// ExtraRules returns the override-supplied prompt rule lines.
func (t *Table) ExtraRules() []string {
	return t.extraRules
}

// PseudoParameterExpr returns the Terraform expression for a pseudo
// parameter, if one is defined.
func PseudoParameterExpr(name string) (string, bool) {
	expr, ok := pseudoParameterExprs[name]
	return expr, ok
}

// TerraformName converts a CloudFormation logical ID (CamelCase) into the
// snake_case identifier Terraform resources conventionally use.
func TerraformName(logicalID string) string {
	var b strings.Builder
	runes := []rune(logicalID)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Insert an underscore at a lower→upper boundary and before the
			// final upper of an acronym followed by a lower (e.g. "DBSubnet"
			// → "db_subnet").
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
