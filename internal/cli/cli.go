package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vk/tfconvert/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes the process reports to its caller.
const (
	CodeValidationFailed = 1
	CodeUsage            = 2
	CodeParseError       = 3
	CodePermanentModel   = 4
)

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("tfconvert", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
tfconvert - AI-assisted CloudFormation to Terraform converter.

Usage:
  tfconvert [options] SOURCE_PATH

Arguments:
  SOURCE_PATH
    Path to a single CloudFormation template (.yaml, .yml or .json) or a
    directory containing templates.

Options:
`)
		flagSet.PrintDefaults()
	}

	outFlag := flagSet.String("out", app.DefaultOutputDir, "Directory for the generated Terraform files and reports.")
	modelFlag := flagSet.String("model", app.DefaultModelID, "Bedrock model identifier to invoke.")
	regionFlag := flagSet.String("region", "", "AWS region for the Bedrock client. Empty uses the SDK default chain.")
	endpointFlag := flagSet.String("endpoint", "", "Base URL of an OpenAI-compatible endpoint. Overrides the Bedrock client.")
	maxAttemptsFlag := flagSet.Int("max-attempts", app.DefaultMaxAttempts, "Maximum convert/validate attempts per template.")
	timeoutFlag := flagSet.Int("timeout", 0, "Per-model-call timeout in seconds. 0 uses the client default.")
	rulesFlag := flagSet.String("rules", "", "Path to a YAML file with extra mapping and rename rules.")
	workersFlag := flagSet.Int("workers", app.DefaultWorkerCount, "Number of templates converted concurrently.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: CodeUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No source path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: CodeUsage, Message: "expected exactly one SOURCE_PATH argument"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: CodeUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: CodeUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *maxAttemptsFlag <= 0 {
		return nil, false, &ExitError{Code: CodeUsage, Message: "invalid max-attempts: must be at least 1"}
	}
	if *timeoutFlag < 0 {
		return nil, false, &ExitError{Code: CodeUsage, Message: "invalid timeout: must not be negative"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		SourcePath:  flagSet.Arg(0),
		OutputDir:   *outFlag,
		ModelID:     *modelFlag,
		Region:      *regionFlag,
		Endpoint:    *endpointFlag,
		Timeout:     time.Duration(*timeoutFlag) * time.Second,
		MaxAttempts: *maxAttemptsFlag,
		RulesPath:   *rulesFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		WorkerCount: *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: CodeUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}
