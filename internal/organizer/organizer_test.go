package organizer_test

import (
	"os"
	"path/filepath"
	"testing"

	"fieldpress/internal/organizer"
	"fieldpress/internal/testsupport"
)

func TestMoveProcessedFilesUnderCategory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil)

	source := filepath.Join(cfg.Paths.InboxDir, "life-science", "frog.jpg")
	testsupport.WriteImage(t, source, 512)

	target, err := org.MoveProcessed(source, "life-science")
	if err != nil {
		t.Fatalf("MoveProcessed returned error: %v", err)
	}
	want := filepath.Join(cfg.Paths.ProcessedDir, "life-science", "frog.jpg")
	if target != want {
		t.Fatalf("unexpected target: got %q want %q", target, want)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected relocated file: %v", err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, got err=%v", err)
	}
}

func TestMoveDuplicateAvoidsCollision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil)

	existing := filepath.Join(cfg.Paths.DuplicatesDir, "life-science", "frog.jpg")
	testsupport.WriteImage(t, existing, 128)

	source := filepath.Join(cfg.Paths.InboxDir, "frog.jpg")
	testsupport.WriteImage(t, source, 512)

	target, err := org.MoveDuplicate(source, "life-science")
	if err != nil {
		t.Fatalf("MoveDuplicate returned error: %v", err)
	}
	want := filepath.Join(cfg.Paths.DuplicatesDir, "life-science", "frog-1.jpg")
	if target != want {
		t.Fatalf("unexpected target: got %q want %q", target, want)
	}
	if _, err := os.Stat(existing); err != nil {
		t.Fatalf("existing duplicate must be untouched: %v", err)
	}
}

func TestMoveProcessedMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil)

	if _, err := org.MoveProcessed(filepath.Join(cfg.Paths.InboxDir, "absent.jpg"), "life-science"); err == nil {
		t.Fatal("expected error for missing source")
	}
}
