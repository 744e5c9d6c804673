package convert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/llm"
	"github.com/vk/tfconvert/internal/tfmap"
)

// scriptedClient plays back canned responses and records every prompt.
type scriptedClient struct {
	responses []response
	prompts   []string
}

type response struct {
	text string
	err  error
}

func (c *scriptedClient) Invoke(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	idx := len(c.prompts) - 1
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	r := c.responses[idx]
	return r.text, r.err
}

const sourceTemplate = `
Resources:
  Assets:
    Type: AWS::S3::Bucket
    Properties:
      BucketName: demo-assets
  Igw:
    Type: AWS::EC2::InternetGateway
  PublicRoute:
    Type: AWS::EC2::Route
    DependsOn: Igw
    Properties:
      GatewayId: !Ref Igw
      DestinationCidrBlock: 0.0.0.0/0
`

const validOutput = `resource "aws_s3_bucket" "assets" {
  bucket = "demo-assets"
}

resource "aws_internet_gateway" "igw" {
  tags = {
    Name = "demo"
  }
}

resource "aws_route" "public_route" {
  destination_cidr_block = "0.0.0.0/0"
  gateway_id             = aws_internet_gateway.igw.id
}
`

const brokenOutput = `resource "aws_s3_bucket" "assets" {
  bucket = "demo-assets"
}

resource "aws_internet_gateway" "igw" {
}

resource "aws_route" "public_route" {
  destination_cidr_block = "0.0.0.0/0"
  gateway_id             = aws_vpc.missing.id
}
`

func newTestOrchestrator(client llm.Client, maxAttempts int) *Orchestrator {
	return New(client, tfmap.New(nil), Options{MaxAttempts: maxAttempts, Name: "demo"})
}

func TestRunParseErrorSkipsModel(t *testing.T) {
	cyclic := `
Resources:
  A:
    Type: AWS::S3::Bucket
    DependsOn: B
  B:
    Type: AWS::S3::Bucket
    DependsOn: A
`
	client := &scriptedClient{responses: []response{{text: validOutput}}}
	orch := newTestOrchestrator(client, 3)

	conv, err := orch.Run(context.Background(), []byte(cyclic))

	var parseErr *cfn.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, StateFailed, conv.State)
	assert.Empty(t, client.prompts, "model must not be invoked on a parse error")
	assert.Empty(t, conv.Attempts)
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	client := &scriptedClient{responses: []response{{text: validOutput}}}
	orch := newTestOrchestrator(client, 3)

	conv, err := orch.Run(context.Background(), []byte(sourceTemplate))

	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, conv.State)
	assert.Equal(t, 1, conv.AttemptCount())
	assert.Len(t, client.prompts, 1)

	// One row per logical ID, in declaration order.
	ids := make([]string, 0, len(conv.Resources))
	for _, row := range conv.Resources {
		ids = append(ids, row.LogicalID)
	}
	assert.Equal(t, []string{"Assets", "Igw", "PublicRoute"}, ids)

	for _, row := range conv.Resources {
		assert.Equal(t, StatusMapped, row.Status, "resource %s", row.LogicalID)
	}
	assert.Equal(t, "aws_internet_gateway.igw", conv.Resources[1].TargetAddress)
	assert.Equal(t, "aws_route.public_route", conv.Resources[2].TargetAddress)
}

func TestRunRetriesUntilValidationPasses(t *testing.T) {
	client := &scriptedClient{responses: []response{
		{text: brokenOutput},
		{text: validOutput},
	}}
	orch := newTestOrchestrator(client, 3)

	conv, err := orch.Run(context.Background(), []byte(sourceTemplate))

	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, conv.State)
	assert.Equal(t, 2, conv.AttemptCount())

	// The first attempt's diagnostics feed the second prompt.
	require.Len(t, client.prompts, 2)
	assert.NotContains(t, client.prompts[0], "Previous attempt")
	assert.Contains(t, client.prompts[1], "Previous attempt")
	assert.Contains(t, client.prompts[1], `reference to undeclared resource "aws_vpc.missing"`)

	// The failing attempt's diagnostics stay in the run record on success.
	assert.False(t, conv.Attempts[0].Result.Pass)
	assert.True(t, conv.Attempts[1].Result.Pass)
	assert.NotEmpty(t, conv.Attempts[0].Result.Errors())
}

func TestRunExhaustsAttemptBudget(t *testing.T) {
	client := &scriptedClient{responses: []response{{text: brokenOutput}}}
	orch := newTestOrchestrator(client, 2)

	conv, err := orch.Run(context.Background(), []byte(sourceTemplate))

	require.NoError(t, err)
	assert.Equal(t, StateFailed, conv.State)
	assert.Equal(t, 2, conv.AttemptCount())
	assert.Len(t, client.prompts, 2, "terminal state must stop further invocations")
}

func TestRunPermanentModelError(t *testing.T) {
	permanent := &llm.InvocationError{Cause: errors.New("access denied")}
	client := &scriptedClient{responses: []response{{err: permanent}}}
	orch := newTestOrchestrator(client, 3)

	conv, err := orch.Run(context.Background(), []byte(sourceTemplate))

	require.Error(t, err)
	assert.True(t, llm.IsPermanent(err))
	assert.Equal(t, StateFailed, conv.State)
	assert.Equal(t, 1, conv.AttemptCount())
	assert.Len(t, client.prompts, 1)
	assert.Zero(t, conv.CountByStatus()[StatusMapped])
}

func TestRunTransientModelErrorRetries(t *testing.T) {
	transient := &llm.InvocationError{Transient: true, Cause: errors.New("throttled")}
	client := &scriptedClient{responses: []response{
		{err: transient},
		{text: validOutput},
	}}
	orch := newTestOrchestrator(client, 3)

	conv, err := orch.Run(context.Background(), []byte(sourceTemplate))

	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, conv.State)
	assert.Equal(t, 2, conv.AttemptCount())
}

func TestRunUnsupportedTypeStillSucceeds(t *testing.T) {
	withWidget := sourceTemplate + `  Widget:
    Type: AWS::FancyService::Widget
`
	client := &scriptedClient{responses: []response{{text: validOutput}}}
	orch := newTestOrchestrator(client, 3)

	conv, err := orch.Run(context.Background(), []byte(withWidget))

	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, conv.State)

	var widget ResourceMapping
	for _, row := range conv.Resources {
		if row.LogicalID == "Widget" {
			widget = row
		}
	}
	assert.Equal(t, StatusUnmapped, widget.Status)
	assert.Empty(t, widget.TargetAddress)

	found := false
	for _, diag := range conv.Diagnostics {
		if diag.Subject == "Widget" {
			found = true
			assert.Contains(t, diag.Message, "unsupported resource type")
		}
	}
	assert.True(t, found, "unmapped resource warning must be recorded")
}

func TestRunCancelledBeforeAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedClient{responses: []response{{text: validOutput}}}
	orch := newTestOrchestrator(client, 3)

	_, err := orch.Run(ctx, []byte(sourceTemplate))

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.prompts)
}

func TestRunStripsFencedOutput(t *testing.T) {
	fenced := "```hcl\n" + validOutput + "```\n"
	client := &scriptedClient{responses: []response{{text: fenced}}}
	orch := newTestOrchestrator(client, 3)

	conv, err := orch.Run(context.Background(), []byte(sourceTemplate))

	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, conv.State)
	require.Equal(t, 1, conv.AttemptCount())
	assert.Contains(t, conv.Attempts[0].FixesApplied, "strip-markdown-fences")
	assert.NotContains(t, conv.Output, "```")
}
