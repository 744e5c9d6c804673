package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/convert"
	"github.com/vk/tfconvert/internal/ctxlog"
	"github.com/vk/tfconvert/internal/fsutil"
	"github.com/vk/tfconvert/internal/llm"
	"github.com/vk/tfconvert/internal/report"
	"github.com/vk/tfconvert/internal/tfmap"
)

// ErrValidationNeverPassed marks a run where at least one template exhausted
// its attempt budget without producing output that validates.
var ErrValidationNeverPassed = errors.New("validation never passed")

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	client llm.Client
	table  *tfmap.Table
}

// NewApp is the constructor for the main application. A nil client selects
// the real model client from the configuration; tests inject a stub.
func NewApp(outW io.Writer, config *Config, client llm.Client) (*App, error) {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)

	var overrides *tfmap.Overrides
	if config.RulesPath != "" {
		ov, err := tfmap.LoadOverrides(config.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule overrides: %w", err)
		}
		overrides = ov
		logger.Debug("Rule overrides loaded.", "path", config.RulesPath)
	}

	return &App{
		outW:   outW,
		logger: logger,
		config: config,
		client: client,
		table:  tfmap.New(overrides),
	}, nil
}

// Run converts every discovered template. A parse error or a permanent
// model error cancels the remaining queue and is returned; templates that
// merely never validated are all processed and surface as
// ErrValidationNeverPassed afterwards.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	files, err := fsutil.FindTemplates(a.config.SourcePath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		a.logger.Warn("No templates found, nothing to convert.", "path", a.config.SourcePath)
		return nil
	}
	a.logger.Info("Templates discovered.", "count", len(files))

	if err := os.MkdirAll(a.config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	client := a.client
	if client == nil {
		client, err = a.newModelClient(ctx)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var fatal error
	failedCount := 0

	workers := a.config.WorkerCount
	if workers > len(files) {
		workers = len(files)
	}
	a.logger.Info("🚀 Starting conversion.", "workers", workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger := a.logger.With("workerID", workerID)
			for path := range jobs {
				if ctx.Err() != nil {
					logger.Debug("Skipping queued template after cancellation.", "path", path)
					continue
				}
				failed, err := a.convertOne(ctx, client, path)
				mu.Lock()
				if failed {
					failedCount++
				}
				if err != nil && fatal == nil {
					fatal = err
					cancel()
				}
				mu.Unlock()
			}
		}(i)
	}

	for _, path := range files {
		jobs <- path
	}
	close(jobs)
	wg.Wait()

	if fatal != nil {
		return fatal
	}
	if failedCount > 0 {
		return fmt.Errorf("%d of %d template(s) did not convert cleanly: %w", failedCount, len(files), ErrValidationNeverPassed)
	}
	a.logger.Info("🏁 Conversion finished.", "templates", len(files))
	return nil
}

// convertOne runs the full pipeline for a single template and writes its
// artifacts. The returned error is fatal for the whole run; a template that
// merely failed validation reports failed=true instead.
func (a *App) convertOne(ctx context.Context, client llm.Client, path string) (failed bool, err error) {
	stem := fsutil.Stem(path)
	logger := a.logger.With("template", stem)
	logger.Info("Converting template.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read template: %w", err)
	}

	orch := convert.New(client, a.table, convert.Options{
		MaxAttempts: a.config.MaxAttempts,
		Name:        stem,
	})
	conv, runErr := orch.Run(ctx, src)

	// The report is written even for runs that ended badly; a parse error
	// is the one case with nothing to report on.
	var parseErr *cfn.ParseError
	if runErr != nil && errors.As(runErr, &parseErr) {
		logger.Error("Template failed to parse.", "error", runErr)
		return false, fmt.Errorf("%s: %w", path, runErr)
	}

	reportPath := filepath.Join(a.config.OutputDir, stem+"_report.md")
	if err := os.WriteFile(reportPath, report.Render(stem, conv), 0o644); err != nil {
		return false, fmt.Errorf("failed to write report: %w", err)
	}
	if conv.Output != "" {
		outputPath := filepath.Join(a.config.OutputDir, stem+".tf")
		if err := os.WriteFile(outputPath, []byte(conv.Output), 0o644); err != nil {
			return false, fmt.Errorf("failed to write output: %w", err)
		}
	}

	if runErr != nil {
		logger.Error("Conversion aborted.", "error", runErr)
		return false, fmt.Errorf("%s: %w", path, runErr)
	}

	if conv.State != convert.StateSucceeded {
		logger.Warn("Conversion failed validation.", "attempts", conv.AttemptCount())
		return true, nil
	}
	logger.Info("Conversion succeeded.", "attempts", conv.AttemptCount())
	return false, nil
}

func (a *App) newModelClient(ctx context.Context) (llm.Client, error) {
	opts := llm.Options{
		ModelID:  a.config.ModelID,
		Region:   a.config.Region,
		Endpoint: a.config.Endpoint,
		Timeout:  a.config.Timeout,
	}
	if a.config.Endpoint != "" {
		a.logger.Debug("Using OpenAI-compatible HTTP client.", "endpoint", a.config.Endpoint)
		return llm.NewHTTPClient(opts), nil
	}
	a.logger.Debug("Using Bedrock client.", "model", a.config.ModelID, "region", a.config.Region)
	client, err := llm.NewBedrockClient(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}
	return client, nil
}
