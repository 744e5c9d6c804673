package cfn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTemplate = `
AWSTemplateFormatVersion: "2010-09-09"
Description: Network stack
Parameters:
  EnvName:
    Type: String
    Default: dev
  DbPassword:
    Type: String
    NoEcho: true
Mappings:
  RegionAmi:
    us-east-1:
      ami: ami-123456
Conditions:
  IsProd: !Equals [!Ref EnvName, prod]
Resources:
  Vpc:
    Type: AWS::EC2::VPC
    Properties:
      CidrBlock: 10.0.0.0/16
      Tags:
        - Key: Name
          Value: !Sub "${EnvName}-vpc"
  Igw:
    Type: AWS::EC2::InternetGateway
  Attachment:
    Type: AWS::EC2::VPCGatewayAttachment
    Properties:
      VpcId: !Ref Vpc
      InternetGatewayId: !Ref Igw
  Subnet:
    Type: AWS::EC2::Subnet
    Properties:
      VpcId: !Ref Vpc
      CidrBlock: !Select [0, !Cidr [!GetAtt Vpc.CidrBlock, 4, 8]]
      AvailabilityZone: !Select [0, !GetAZs ""]
  Route:
    Type: AWS::EC2::Route
    DependsOn: Attachment
    Properties:
      RouteTableId: !Ref RouteTable
      DestinationCidrBlock: 0.0.0.0/0
      GatewayId: !Ref Igw
  RouteTable:
    Type: AWS::EC2::RouteTable
    Properties:
      VpcId: !Ref Vpc
Outputs:
  VpcId:
    Description: The VPC ID
    Value: !Ref Vpc
    Export:
      Name: !Sub "${AWS::StackName}-VpcId"
`

func TestParseSampleTemplate(t *testing.T) {
	tpl, err := Parse(context.Background(), []byte(sampleTemplate))
	require.NoError(t, err)

	assert.Equal(t, "Network stack", tpl.Description)
	assert.Equal(t, []string{"EnvName", "DbPassword"}, tpl.ParameterOrder)
	assert.True(t, tpl.Parameters["DbPassword"].NoEcho)
	assert.Equal(t, "String", tpl.Parameters["EnvName"].Type)

	require.Len(t, tpl.ResourceOrder, 6)
	assert.Equal(t, []string{"Vpc", "Igw", "Attachment", "Subnet", "Route", "RouteTable"}, tpl.ResourceOrder)

	route := tpl.Resources["Route"]
	assert.Equal(t, "AWS::EC2::Route", route.Type)
	assert.Equal(t, []string{"Attachment"}, route.ExplicitDeps)
	assert.Equal(t, []string{"Igw", "RouteTable"}, route.ImplicitDeps)
	assert.Equal(t, []string{"Attachment", "Igw", "RouteTable"}, route.Dependencies())

	subnet := tpl.Resources["Subnet"]
	assert.Equal(t, []string{"Vpc"}, subnet.ImplicitDeps)

	assert.Equal(t, []string{"Igw", "Vpc", "Attachment", "RouteTable", "Route", "Subnet"}, tpl.DeploymentOrder)

	require.Contains(t, tpl.Outputs, "VpcId")
	assert.NotNil(t, tpl.Outputs["VpcId"].ExportName)
}

func TestParseIntrinsicForms(t *testing.T) {
	const doc = `
Resources:
  Bucket:
    Type: AWS::S3::Bucket
    Properties:
      BucketName:
        Fn::Join:
          - "-"
          - - logs
            - Ref: Env
      Tags:
        - Key: arn
          Value: !GetAtt Role.Arn
  Role:
    Type: AWS::IAM::Role
Parameters:
  Env:
    Type: String
`
	tpl, err := Parse(context.Background(), []byte(doc))
	require.NoError(t, err)

	props := tpl.Resources["Bucket"].Properties
	join, ok := props.Get("BucketName").(*Call)
	require.True(t, ok, "long-form Fn::Join should parse as a Call")
	assert.Equal(t, FnJoin, join.Name)
	require.Len(t, join.Args, 2)

	refs := References(props)
	targets := make([]string, 0, len(refs))
	for _, r := range refs {
		targets = append(targets, r.Target)
	}
	assert.Contains(t, targets, "Env")
	assert.Contains(t, targets, "Role")

	assert.Equal(t, []string{"Role"}, tpl.Resources["Bucket"].ImplicitDeps)
}

func TestParseSubReferences(t *testing.T) {
	const doc = `
Parameters:
  Env:
    Type: String
Resources:
  Bucket:
    Type: AWS::S3::Bucket
    Properties:
      BucketName: !Sub "${Env}-${AWS::AccountId}-${!Literal}-bucket"
`
	tpl, err := Parse(context.Background(), []byte(doc))
	require.NoError(t, err)

	refs := References(tpl.Resources["Bucket"].Properties)
	require.Len(t, refs, 2)
	assert.Equal(t, "Env", refs[0].Target)
	assert.Equal(t, "AWS::AccountId", refs[1].Target)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			doc:     "Resources: [unbalanced",
			wantErr: "malformed document",
		},
		{
			name:    "unsupported top-level section",
			doc:     "Transform: AWS::Serverless-2016-10-31\nResources:\n  R:\n    Type: AWS::S3::Bucket\n",
			wantErr: "unsupported top-level section",
		},
		{
			name:    "no resources",
			doc:     "Description: empty\n",
			wantErr: "no resources",
		},
		{
			name:    "resource missing type",
			doc:     "Resources:\n  R:\n    Properties: {}\n",
			wantErr: "missing required field Type",
		},
		{
			name:    "unresolved reference",
			doc:     "Resources:\n  R:\n    Type: AWS::S3::Bucket\n    Properties:\n      BucketName: !Ref Missing\n",
			wantErr: `references undeclared name "Missing"`,
		},
		{
			name:    "unresolved condition",
			doc:     "Resources:\n  R:\n    Type: AWS::S3::Bucket\n    Condition: Nope\n",
			wantErr: `undeclared condition "Nope"`,
		},
		{
			name:    "depends on unknown resource",
			doc:     "Resources:\n  R:\n    Type: AWS::S3::Bucket\n    DependsOn: Ghost\n",
			wantErr: `depends on undeclared resource "Ghost"`,
		},
		{
			name:    "self dependency",
			doc:     "Resources:\n  R:\n    Type: AWS::S3::Bucket\n    DependsOn: R\n",
			wantErr: "depends on itself",
		},
		{
			name: "dependency cycle",
			doc: `Resources:
  A:
    Type: AWS::EC2::SecurityGroup
    Properties:
      Peer: !Ref B
  B:
    Type: AWS::EC2::SecurityGroup
    Properties:
      Peer: !Ref A
`,
			wantErr: "not acyclic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tt.doc))
			require.Error(t, err)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseJSONTemplate(t *testing.T) {
	const doc = `{
  "Resources": {
    "Bucket": {
      "Type": "AWS::S3::Bucket",
      "Properties": {
        "BucketName": {"Fn::Sub": "${AWS::StackName}-logs"}
      }
    }
  }
}`
	tpl, err := Parse(context.Background(), []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "AWS::S3::Bucket", tpl.Resources["Bucket"].Type)
}
