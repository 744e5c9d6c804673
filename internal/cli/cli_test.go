package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tfconvert/internal/app"
)

func TestParseNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer

	config, shouldExit, err := Parse(nil, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, config)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseDefaults(t *testing.T) {
	var out bytes.Buffer

	config, shouldExit, err := Parse([]string{"stack.yaml"}, &out)

	require.NoError(t, err)
	assert.False(t, shouldExit)
	require.NotNil(t, config)
	assert.Equal(t, "stack.yaml", config.SourcePath)
	assert.Equal(t, app.DefaultOutputDir, config.OutputDir)
	assert.Equal(t, app.DefaultModelID, config.ModelID)
	assert.Equal(t, app.DefaultMaxAttempts, config.MaxAttempts)
	assert.Equal(t, app.DefaultWorkerCount, config.WorkerCount)
	assert.Equal(t, "text", config.LogFormat)
	assert.Equal(t, "info", config.LogLevel)
}

func TestParseAllFlags(t *testing.T) {
	var out bytes.Buffer

	config, shouldExit, err := Parse([]string{
		"-out", "/tmp/tf",
		"-model", "anthropic.claude-3-sonnet",
		"-region", "eu-west-1",
		"-endpoint", "https://llm.internal/v1",
		"-max-attempts", "5",
		"-timeout", "90",
		"-rules", "rules.yaml",
		"-workers", "2",
		"-log-format", "json",
		"-log-level", "debug",
		"templates/",
	}, &out)

	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, "templates/", config.SourcePath)
	assert.Equal(t, "/tmp/tf", config.OutputDir)
	assert.Equal(t, "anthropic.claude-3-sonnet", config.ModelID)
	assert.Equal(t, "eu-west-1", config.Region)
	assert.Equal(t, "https://llm.internal/v1", config.Endpoint)
	assert.Equal(t, 5, config.MaxAttempts)
	assert.Equal(t, 90*time.Second, config.Timeout)
	assert.Equal(t, "rules.yaml", config.RulesPath)
	assert.Equal(t, 2, config.WorkerCount)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestParseRejectsInvalidInput(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "bad log format", args: []string{"-log-format", "xml", "stack.yaml"}},
		{name: "bad log level", args: []string{"-log-level", "loud", "stack.yaml"}},
		{name: "zero max attempts", args: []string{"-max-attempts", "0", "stack.yaml"}},
		{name: "negative timeout", args: []string{"-timeout", "-5", "stack.yaml"}},
		{name: "extra positional args", args: []string{"a.yaml", "b.yaml"}},
		{name: "unknown flag", args: []string{"-bogus", "stack.yaml"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer

			_, _, err := Parse(tc.args, &out)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, CodeUsage, exitErr.Code)
		})
	}
}

func TestParseHelpExitsCleanly(t *testing.T) {
	var out bytes.Buffer

	config, shouldExit, err := Parse([]string{"-h"}, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, config)
}
