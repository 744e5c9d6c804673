package convert

import (
	"context"
	"fmt"

	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/ctxlog"
	"github.com/vk/tfconvert/internal/fix"
	"github.com/vk/tfconvert/internal/llm"
	"github.com/vk/tfconvert/internal/prompt"
	"github.com/vk/tfconvert/internal/tfmap"
	"github.com/vk/tfconvert/internal/validate"
)

const DefaultMaxAttempts = 3

// Options tunes a single orchestrator.
type Options struct {
	// MaxAttempts bounds the convert/fix/validate loop. Zero means
	// DefaultMaxAttempts.
	MaxAttempts int
	// Name labels diagnostics and log lines, typically the source file stem.
	Name string
}

// Orchestrator drives one template through the attempt loop: build prompt,
// invoke the model, post-process, validate, and retry on failure until the
// attempt budget runs out.
type Orchestrator struct {
	client      llm.Client
	builder     *prompt.Builder
	pipeline    *fix.Pipeline
	validator   *validate.Validator
	table       *tfmap.Table
	maxAttempts int
	name        string
}

func New(client llm.Client, table *tfmap.Table, opts Options) *Orchestrator {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	name := opts.Name
	if name == "" {
		name = "template"
	}
	return &Orchestrator{
		client:      client,
		builder:     prompt.NewBuilder(table),
		pipeline:    fix.NewPipeline(table),
		validator:   validate.New(),
		table:       table,
		maxAttempts: maxAttempts,
		name:        name,
	}
}

// Run converts one CloudFormation document. A *cfn.ParseError comes back
// before the model is ever invoked; a permanent *llm.InvocationError ends
// the run after its first surfacing. In both cases, and on success or
// budget exhaustion, the returned Conversion reflects everything that
// happened.
func (o *Orchestrator) Run(ctx context.Context, src []byte) (*Conversion, error) {
	logger := ctxlog.FromContext(ctx).With("template", o.name)

	conv := &Conversion{State: StatePending}

	tpl, err := cfn.Parse(ctx, src)
	if err != nil {
		conv.State = StateFailed
		return conv, err
	}
	logger.Debug("template parsed",
		"resources", len(tpl.ResourceOrder),
		"parameters", len(tpl.ParameterOrder),
		"outputs", len(tpl.OutputOrder))

	var prior []validate.Diagnostic
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			conv.finalize(tpl, o.table)
			return conv, fmt.Errorf("conversion cancelled before attempt %d: %w", attempt, err)
		}

		logger.Info("starting attempt", "attempt", attempt, "max_attempts", o.maxAttempts)
		conv.State = StatePending

		raw, err := o.client.Invoke(ctx, o.builder.Build(tpl, prior))
		if err != nil {
			diag := validate.Diagnostic{
				Severity: validate.SeverityError,
				Location: o.name,
				Message:  fmt.Sprintf("model invocation failed: %v", err),
			}
			conv.Diagnostics = append(conv.Diagnostics, diag)
			conv.Attempts = append(conv.Attempts, Attempt{
				Index:  attempt,
				Result: validate.Result{Diagnostics: []validate.Diagnostic{diag}},
			})

			if llm.IsPermanent(err) {
				logger.Error("model invocation failed permanently", "attempt", attempt, "error", err)
				conv.State = StateFailed
				conv.finalize(tpl, o.table)
				return conv, err
			}
			logger.Warn("model invocation failed, retrying", "attempt", attempt, "error", err)
			conv.State = StateRetrying
			prior = []validate.Diagnostic{diag}
			continue
		}
		conv.State = StateConverted

		outcome := o.pipeline.Run(ctx, raw, tpl)
		conv.State = StatePostProcessed
		for _, note := range outcome.Notes {
			conv.Diagnostics = append(conv.Diagnostics, validate.Diagnostic{
				Severity: validate.SeverityWarning,
				Location: o.name,
				Message:  note,
			})
		}

		conv.State = StateValidating
		result := o.validator.Validate(ctx, o.name+".tf", []byte(outcome.Text))
		conv.Attempts = append(conv.Attempts, Attempt{
			Index:        attempt,
			RawOutput:    raw,
			Processed:    outcome.Text,
			Result:       result,
			FixesApplied: outcome.AppliedRules(),
		})
		conv.Diagnostics = append(conv.Diagnostics, result.Diagnostics...)
		conv.Output = outcome.Text
		conv.changes = outcome.Changes

		if result.Pass {
			logger.Info("validation passed", "attempt", attempt, "fixes", len(outcome.Changes))
			conv.State = StateSucceeded
			conv.finalize(tpl, o.table)
			return conv, nil
		}

		errs := result.Errors()
		logger.Warn("validation failed", "attempt", attempt, "errors", len(errs))
		conv.State = StateRetrying
		prior = errs
	}

	logger.Error("attempt budget exhausted", "attempts", o.maxAttempts)
	conv.State = StateFailed
	conv.finalize(tpl, o.table)
	return conv, nil
}
