package optimizer_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldpress/internal/services/optimizer"
)

// fileCreatingExecutor writes the destination file named by the final
// argument, simulating a successful magick run.
type fileCreatingExecutor struct {
	args [][]string
	fail map[string]error
}

func (f *fileCreatingExecutor) Run(ctx context.Context, binary string, args []string) error {
	clone := append([]string(nil), args...)
	f.args = append(f.args, clone)
	dest := args[len(args)-1]
	if err, ok := f.fail[filepath.Base(dest)]; ok {
		return err
	}
	return os.WriteFile(dest, []byte("img"), 0o644)
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frog.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestGenerateProducesAllVariants(t *testing.T) {
	source := writeSource(t)
	destDir := filepath.Join(t.TempDir(), "asset")
	exec := &fileCreatingExecutor{}
	client := optimizer.New(optimizer.Config{Binary: "magick"}, optimizer.WithExecutor(exec))

	variants, err := client.Generate(context.Background(), source, destDir, nil)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(variants))
	}

	byKind := make(map[string]optimizer.Variant, len(variants))
	for _, v := range variants {
		byKind[v.Kind] = v
		if _, err := os.Stat(v.Path); err != nil {
			t.Fatalf("expected variant file %s: %v", v.Path, err)
		}
	}
	if byKind[optimizer.KindPhoto].Width != 1280 {
		t.Fatalf("unexpected photo width: %d", byKind[optimizer.KindPhoto].Width)
	}
	if byKind[optimizer.KindThumb].Width != 320 {
		t.Fatalf("unexpected thumb width: %d", byKind[optimizer.KindThumb].Width)
	}
	if byKind[optimizer.KindPlaceholder].Width != 24 {
		t.Fatalf("unexpected placeholder width: %d", byKind[optimizer.KindPlaceholder].Width)
	}

	if len(exec.args) != 3 {
		t.Fatalf("expected 3 magick invocations, got %d", len(exec.args))
	}
	first := strings.Join(exec.args[0], " ")
	if !strings.Contains(first, "-resize 1280x1280>") {
		t.Fatalf("expected shrink-only resize in args, got %q", first)
	}
	if !strings.Contains(first, "-quality 82") {
		t.Fatalf("expected default quality in args, got %q", first)
	}
}

func TestGenerateSkipsFailedVariant(t *testing.T) {
	source := writeSource(t)
	destDir := filepath.Join(t.TempDir(), "asset")
	exec := &fileCreatingExecutor{fail: map[string]error{"thumb.jpg": errors.New("boom")}}
	client := optimizer.New(optimizer.Config{Binary: "magick"}, optimizer.WithExecutor(exec))

	var failures []string
	variants, err := client.Generate(context.Background(), source, destDir, func(kind string, err error) {
		failures = append(failures, fmt.Sprintf("%s=%v", kind, err))
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants after one failure, got %d", len(variants))
	}
	for _, v := range variants {
		if v.Kind == optimizer.KindThumb {
			t.Fatal("failed variant should not be returned")
		}
	}
	if len(failures) != 1 || !strings.HasPrefix(failures[0], "thumb=") {
		t.Fatalf("expected thumb failure reported, got %v", failures)
	}
}

func TestGenerateDetectsMissingOutput(t *testing.T) {
	source := writeSource(t)
	destDir := filepath.Join(t.TempDir(), "asset")
	// Executor succeeds without creating any file.
	exec := executorFunc(func(ctx context.Context, binary string, args []string) error { return nil })
	client := optimizer.New(optimizer.Config{Binary: "magick"}, optimizer.WithExecutor(exec))

	var failures int
	variants, err := client.Generate(context.Background(), source, destDir, func(string, error) { failures++ })
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(variants) != 0 {
		t.Fatalf("expected no variants, got %d", len(variants))
	}
	if failures != 3 {
		t.Fatalf("expected 3 reported failures, got %d", failures)
	}
}

func TestGenerateRejectsMissingSource(t *testing.T) {
	client := optimizer.New(optimizer.Config{Binary: "magick"}, optimizer.WithExecutor(&fileCreatingExecutor{}))
	if _, err := client.Generate(context.Background(), filepath.Join(t.TempDir(), "absent.jpg"), t.TempDir(), nil); err == nil {
		t.Fatal("expected error for missing source")
	}
}

type executorFunc func(ctx context.Context, binary string, args []string) error

func (f executorFunc) Run(ctx context.Context, binary string, args []string) error {
	return f(ctx, binary, args)
}
