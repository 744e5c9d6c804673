package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/tfconvert/internal/app"
	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/cli"
	"github.com/vk/tfconvert/internal/llm"
)

// main is the entrypoint for the tfconvert application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. It maps the outcome onto the documented exit codes.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	converter, err := app.NewApp(outW, appConfig, nil)
	if err != nil {
		return &cli.ExitError{Code: cli.CodeUsage, Message: err.Error()}
	}

	if err := converter.Run(context.Background()); err != nil {
		var parseErr *cfn.ParseError
		switch {
		case errors.As(err, &parseErr):
			return &cli.ExitError{Code: cli.CodeParseError, Message: err.Error()}
		case llm.IsPermanent(err):
			return &cli.ExitError{Code: cli.CodePermanentModel, Message: err.Error()}
		case errors.Is(err, app.ErrValidationNeverPassed):
			return &cli.ExitError{Code: cli.CodeValidationFailed, Message: err.Error()}
		}
		return err
	}
	return nil
}
