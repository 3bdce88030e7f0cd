package renderer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldpress/internal/services/renderer"
)

type stubExecutor struct {
	args    [][]string
	err     error
	noWrite bool
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string) error {
	clone := append([]string(nil), args...)
	s.args = append(s.args, clone)
	if s.err != nil {
		return s.err
	}
	if s.noWrite {
		return nil
	}
	// The output path follows the -o flag.
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return os.WriteFile(args[i+1], []byte("%PDF-1.7"), 0o644)
		}
	}
	return errors.New("no output flag in args")
}

func writeMarkdown(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lesson.md")
	if err := os.WriteFile(path, []byte("# Pond Life\n\nFrogs.\n"), 0o644); err != nil {
		t.Fatalf("write markdown: %v", err)
	}
	return path
}

func TestRenderProducesPDF(t *testing.T) {
	md := writeMarkdown(t)
	out := filepath.Join(t.TempDir(), "docs", "lesson-k-2.pdf")
	exec := &stubExecutor{}
	client := renderer.New(renderer.Config{Binary: "pandoc", PDFEngine: "xelatex"}, renderer.WithExecutor(exec))

	doc := renderer.Document{
		MarkdownPath: md,
		OutputPath:   out,
		ResourceDir:  filepath.Dir(md),
		Title:        "Pond Life",
		Subtitle:     "Grades K-2",
	}
	if err := client.Render(context.Background(), doc); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output file: %v", err)
	}

	if len(exec.args) != 1 {
		t.Fatalf("expected one pandoc invocation, got %d", len(exec.args))
	}
	joined := strings.Join(exec.args[0], " ")
	for _, want := range []string{
		"--pdf-engine=xelatex",
		"--resource-path=" + filepath.Dir(md),
		"--metadata=title:Pond Life",
		"--metadata=subtitle:Grades K-2",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args, got %q", want, joined)
		}
	}
}

func TestRenderReturnsExecutorError(t *testing.T) {
	md := writeMarkdown(t)
	exec := &stubExecutor{err: errors.New("xelatex not found")}
	client := renderer.New(renderer.Config{}, renderer.WithExecutor(exec))

	err := client.Render(context.Background(), renderer.Document{
		MarkdownPath: md,
		OutputPath:   filepath.Join(t.TempDir(), "out.pdf"),
	})
	if err == nil {
		t.Fatal("expected error from executor")
	}
	if !strings.Contains(err.Error(), "xelatex not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRenderDetectsMissingOutput(t *testing.T) {
	md := writeMarkdown(t)
	client := renderer.New(renderer.Config{}, renderer.WithExecutor(&stubExecutor{noWrite: true}))

	err := client.Render(context.Background(), renderer.Document{
		MarkdownPath: md,
		OutputPath:   filepath.Join(t.TempDir(), "out.pdf"),
	})
	if err == nil || !strings.Contains(err.Error(), "no output file") {
		t.Fatalf("expected 'no output file' error, got: %v", err)
	}
}

func TestRenderRejectsMissingMarkdown(t *testing.T) {
	client := renderer.New(renderer.Config{}, renderer.WithExecutor(&stubExecutor{}))
	err := client.Render(context.Background(), renderer.Document{
		MarkdownPath: filepath.Join(t.TempDir(), "absent.md"),
		OutputPath:   filepath.Join(t.TempDir(), "out.pdf"),
	})
	if err == nil {
		t.Fatal("expected error for missing markdown")
	}
}
