package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/vk/tfconvert/internal/ctxlog"
)

// Inference parameters tuned for translation work: low temperature keeps the
// output close to deterministic.
const (
	bedrockMaxTokens   = 4096
	bedrockTemperature = 0.1
	bedrockTopP        = 0.9
)

// converseAPI is the slice of the Bedrock runtime client this package uses.
// It exists so tests can substitute a deterministic fake.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient invokes a model through the Amazon Bedrock Converse API.
type BedrockClient struct {
	api  converseAPI
	opts Options
}

// NewBedrockClient loads the default AWS configuration for the given region
// and returns a ready client.
func NewBedrockClient(ctx context.Context, opts Options) (*BedrockClient, error) {
	opts = opts.withDefaults()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockClient{
		api:  bedrockruntime.NewFromConfig(awsCfg),
		opts: opts,
	}, nil
}

// Invoke sends the prompt and returns the model's raw text output.
// Transient faults are retried internally.
func (c *BedrockClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return invokeWithRetry(ctx, c.opts.MaxRetries, func(ctx context.Context) (string, error) {
		return c.converseOnce(ctx, prompt)
	})
}

func (c *BedrockClient) converseOnce(ctx context.Context, prompt string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.Timeout)
	defer cancel()

	out, err := c.api.Converse(callCtx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.opts.ModelID),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(bedrockMaxTokens),
			Temperature: aws.Float32(bedrockTemperature),
			TopP:        aws.Float32(bedrockTopP),
		},
	})
	if err != nil {
		return "", classifyBedrockError(err)
	}

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok || len(msg.Value.Content) == 0 {
		return "", &InvocationError{Transient: true, Cause: errors.New("model returned an empty response")}
	}
	text, ok := msg.Value.Content[0].(*brtypes.ContentBlockMemberText)
	if !ok {
		return "", &InvocationError{Transient: true, Cause: errors.New("model returned a non-text content block")}
	}

	logger.Debug("Model call completed.", "stop_reason", out.StopReason, "output_bytes", len(text.Value))
	return text.Value, nil
}

// permanentAPICodes are Bedrock error codes that must never be retried.
var permanentAPICodes = map[string]bool{
	"AccessDeniedException":         true,
	"UnauthorizedException":         true,
	"ValidationException":           true,
	"ResourceNotFoundException":     true,
	"ServiceQuotaExceededException": true,
}

// classifyBedrockError wraps an SDK error into an InvocationError, deciding
// transient vs permanent from the smithy API error code. Anything that is
// not a recognized permanent code (timeouts, throttling, network faults,
// 5xx) counts as transient.
func classifyBedrockError(err error) *InvocationError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if permanentAPICodes[apiErr.ErrorCode()] {
			return &InvocationError{Transient: false, Cause: err}
		}
	}
	return &InvocationError{Transient: true, Cause: err}
}
