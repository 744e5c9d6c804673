package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/llm"
)

const bucketTemplate = `
Resources:
  Assets:
    Type: AWS::S3::Bucket
    Properties:
      BucketName: demo-assets
`

const bucketOutput = `resource "aws_s3_bucket" "assets" {
  bucket = "demo-assets"
}
`

// stubClient returns the same canned response for every prompt.
type stubClient struct {
	text  string
	err   error
	calls int
}

func (c *stubClient) Invoke(context.Context, string) (string, error) {
	c.calls++
	return c.text, c.err
}

func newTestApp(t *testing.T, sourcePath string, client llm.Client) (*App, string) {
	t.Helper()
	outDir := t.TempDir()
	config, err := NewConfig(Config{
		SourcePath:  sourcePath,
		OutputDir:   outDir,
		LogLevel:    "error",
		MaxAttempts: 2,
	})
	require.NoError(t, err)

	a, err := NewApp(io.Discard, config, client)
	require.NoError(t, err)
	return a, outDir
}

func writeTemplate(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunWritesArtifacts(t *testing.T) {
	srcDir := t.TempDir()
	writeTemplate(t, srcDir, "bucket.yaml", bucketTemplate)

	a, outDir := newTestApp(t, srcDir, &stubClient{text: bucketOutput})
	require.NoError(t, a.Run(context.Background()))

	output, err := os.ReadFile(filepath.Join(outDir, "bucket.tf"))
	require.NoError(t, err)
	assert.Contains(t, string(output), `resource "aws_s3_bucket" "assets"`)

	reportBody, err := os.ReadFile(filepath.Join(outDir, "bucket_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(reportBody), "# Conversion report: bucket")
	assert.Contains(t, string(reportBody), "**Succeeded**")
}

func TestRunConvertsEveryTemplateInDirectory(t *testing.T) {
	srcDir := t.TempDir()
	writeTemplate(t, srcDir, "one.yaml", bucketTemplate)
	writeTemplate(t, srcDir, "two.yml", bucketTemplate)
	writeTemplate(t, srcDir, "three.json", `{"Resources": {"Assets": {"Type": "AWS::S3::Bucket"}}}`)

	a, outDir := newTestApp(t, srcDir, &stubClient{text: bucketOutput})
	require.NoError(t, a.Run(context.Background()))

	for _, stem := range []string{"one", "two", "three"} {
		assert.FileExists(t, filepath.Join(outDir, stem+".tf"))
		assert.FileExists(t, filepath.Join(outDir, stem+"_report.md"))
	}
}

func TestRunValidationNeverPasses(t *testing.T) {
	srcDir := t.TempDir()
	writeTemplate(t, srcDir, "bucket.yaml", bucketTemplate)

	broken := `resource "aws_s3_bucket" "assets" {
  bucket = var.undeclared
}
`
	client := &stubClient{text: broken}
	a, outDir := newTestApp(t, srcDir, client)

	err := a.Run(context.Background())
	require.ErrorIs(t, err, ErrValidationNeverPassed)
	assert.Equal(t, 2, client.calls, "attempt budget bounds invocations")

	// The failed run still leaves a report behind.
	reportBody, err := os.ReadFile(filepath.Join(outDir, "bucket_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(reportBody), "**Failed**")
	assert.Contains(t, string(reportBody), "undeclared variable")
}

// promptKeyedClient answers per template, keyed on a marker the prompt is
// known to carry (the serialized bucket name).
type promptKeyedClient struct {
	marker string
	hit    string
	miss   string
}

func (c *promptKeyedClient) Invoke(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, c.marker) {
		return c.hit, nil
	}
	return c.miss, nil
}

func TestRunCountsOnlyFailedTemplates(t *testing.T) {
	srcDir := t.TempDir()
	writeTemplate(t, srcDir, "good.yaml", bucketTemplate)
	writeTemplate(t, srcDir, "bad.yaml", strings.ReplaceAll(bucketTemplate, "demo-assets", "other-assets"))

	client := &promptKeyedClient{
		marker: "demo-assets",
		hit:    bucketOutput,
		miss: `resource "aws_s3_bucket" "assets" {
  bucket = var.undeclared
}
`,
	}
	a, outDir := newTestApp(t, srcDir, client)

	err := a.Run(context.Background())
	require.ErrorIs(t, err, ErrValidationNeverPassed)
	assert.Contains(t, err.Error(), "1 of 2 template(s)")

	// The passing template still produced its artifacts.
	assert.FileExists(t, filepath.Join(outDir, "good.tf"))
}

func TestRunParseErrorIsFatal(t *testing.T) {
	srcDir := t.TempDir()
	writeTemplate(t, srcDir, "broken.yaml", "Resources: []\n")

	client := &stubClient{text: bucketOutput}
	a, _ := newTestApp(t, srcDir, client)

	err := a.Run(context.Background())
	var parseErr *cfn.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Zero(t, client.calls, "the model must not run for an unparseable template")
}

func TestRunPermanentModelErrorIsFatal(t *testing.T) {
	srcDir := t.TempDir()
	writeTemplate(t, srcDir, "bucket.yaml", bucketTemplate)

	client := &stubClient{err: &llm.InvocationError{Cause: errors.New("access denied")}}
	a, _ := newTestApp(t, srcDir, client)

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, llm.IsPermanent(err))
}

func TestNewConfigRequiresSourcePath(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.Error(t, err)
}

func TestNewConfigAppliesDefaults(t *testing.T) {
	config, err := NewConfig(Config{SourcePath: "stack.yaml"})
	require.NoError(t, err)
	assert.Equal(t, DefaultOutputDir, config.OutputDir)
	assert.Equal(t, DefaultModelID, config.ModelID)
	assert.Equal(t, DefaultMaxAttempts, config.MaxAttempts)
	assert.Equal(t, DefaultWorkerCount, config.WorkerCount)
}

func TestNewAppRejectsMissingRulesFile(t *testing.T) {
	config, err := NewConfig(Config{
		SourcePath: "stack.yaml",
		RulesPath:  filepath.Join(t.TempDir(), "missing.yaml"),
	})
	require.NoError(t, err)

	_, err = NewApp(io.Discard, config, nil)
	assert.Error(t, err)
}
