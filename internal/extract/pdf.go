package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler-utils")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDFExtractor shells out to pdftotext. The upload is staged in a temp
// file which is removed before Extract returns.
type PDFExtractor struct {
	tool     string
	runner   CommandRunner
	lookPath func(string) (string, error)
}

func NewPDFExtractor(tool string) *PDFExtractor {
	return NewPDFExtractorWithRunner(tool, execRunner{})
}

func NewPDFExtractorWithRunner(tool string, runner CommandRunner) *PDFExtractor {
	if tool == "" {
		tool = "pdftotext"
	}
	return &PDFExtractor{tool: tool, runner: runner, lookPath: exec.LookPath}
}

func (p *PDFExtractor) Extract(ctx context.Context, content []byte) (string, error) {
	path, err := p.lookPath(p.tool)
	if err != nil {
		return "", ErrPDFToolNotFound
	}

	tmp, err := os.CreateTemp("", "docchat-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out, err := p.runner.Run(ctx, path, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	// pdftotext separates pages with form feeds
	text := strings.ReplaceAll(string(out), "\f", "\n")
	return strings.TrimSpace(text), nil
}
