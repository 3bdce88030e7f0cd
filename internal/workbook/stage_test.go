package workbook_test

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"fieldpress/internal/config"
	"fieldpress/internal/gallery"
	"fieldpress/internal/logging"
	"fieldpress/internal/queue"
	"fieldpress/internal/services"
	"fieldpress/internal/services/llm"
	"fieldpress/internal/services/renderer"
	"fieldpress/internal/testsupport"
	"fieldpress/internal/workbook"
)

const workbookBody = `{
  "title": "Pond Frog Explorations",
  "introduction": "Get ready to look closely at the pond.",
  "activities": [
    {
      "name": "Habitat Hunt",
      "materials": ["clipboard", "pencil"],
      "instructions": ["Walk the schoolyard edge.", "Record every living thing you see."],
      "reflection_questions": ["Which living thing surprised you?"]
    },
    {
      "name": "Frog Life Cycle Wheel",
      "instructions": ["Cut out the wheel segments.", "Order the life cycle stages.", "Pin the wheel together."]
    }
  ]
}`

var callUsage = llm.Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500}

type stubContent struct {
	mu        sync.Mutex
	jsonCalls []string
	body      string
	err       error
}

func (s *stubContent) CompleteJSON(_ context.Context, _, userPrompt string, _ *llm.ImageAttachment) (llm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return llm.Result{}, s.err
	}
	s.jsonCalls = append(s.jsonCalls, userPrompt)
	body := s.body
	if body == "" {
		body = workbookBody
	}
	return llm.Result{Content: body, Usage: callUsage}, nil
}

func (s *stubContent) Cost(usage llm.Usage) float64 {
	return usage.Cost(1.0, 1.0)
}

type pdfExecutor struct {
	err error
}

func (p pdfExecutor) Run(_ context.Context, _ string, args []string) error {
	if p.err != nil {
		return p.err
	}
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return os.WriteFile(args[i+1], []byte("%PDF-1.7"), 0o644)
		}
	}
	return errors.New("missing -o flag")
}

func newRenderer(fail error) renderer.Renderer {
	return renderer.New(renderer.Config{}, renderer.WithExecutor(pdfExecutor{err: fail}))
}

// fakeGit satisfies gallery.Git, seeding clones with a published asset tree
// and snapshotting the working tree at every commit.
type fakeGit struct {
	mu         sync.Mutex
	calls      []string
	messages   []string
	seedAssets []gallery.Asset
	seedFiles  map[string]string
	snapshots  []map[string]string
}

func (g *fakeGit) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGit) Clone(_ context.Context, dir string, _ []string) error {
	g.record("clone")
	if len(g.seedAssets) > 0 {
		if err := gallery.SaveAssets(dir, g.seedAssets); err != nil {
			return err
		}
	}
	for rel, content := range g.seedFiles {
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (g *fakeGit) Add(_ context.Context, _ string) error {
	g.record("add")
	return nil
}

func (g *fakeGit) Commit(_ context.Context, dir, message string) error {
	g.record("commit")
	snapshot := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		snapshot[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, message)
	g.snapshots = append(g.snapshots, snapshot)
	return nil
}

func (g *fakeGit) Push(_ context.Context, _ string) error {
	g.record("push")
	return nil
}

func (g *fakeGit) Fetch(_ context.Context, _ string) error {
	g.record("fetch")
	return nil
}

func (g *fakeGit) Rebase(_ context.Context, _ string) error {
	g.record("rebase")
	return nil
}

func publishedAsset() gallery.Asset {
	return gallery.Asset{
		ID:         7,
		Filename:   "Pond Frog.jpg",
		Category:   "life-science",
		Title:      "Pond Frog",
		Slug:       "pond-frog",
		PhotoPath:  "assets/life-science/7-pond-frog/photo.jpg",
		HasContent: true,
		Lessons: map[string]gallery.Lesson{
			"K-2": {MarkdownPath: "assets/life-science/7-pond-frog/lesson-k-2.md"},
			"3-5": {MarkdownPath: "assets/life-science/7-pond-frog/lesson-3-5.md"},
			"6-8": {MarkdownPath: "assets/life-science/7-pond-frog/lesson-6-8.md"},
		},
		ProcessingCost: 0.5,
		ProcessingTime: 10.0,
	}
}

func seedFilesFor(asset gallery.Asset) map[string]string {
	files := map[string]string{
		asset.PhotoPath: "img",
	}
	for _, entry := range asset.Lessons {
		files[entry.MarkdownPath] = "# Pond Frog\n\nObserve pond life closely.\n"
	}
	return files
}

type stageHarness struct {
	cfg     *config.Config
	store   *queue.Store
	content *stubContent
	git     *fakeGit
	stage   *workbook.Stage
}

func newHarness(t *testing.T, git *fakeGit, render renderer.Renderer) *stageHarness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	content := &stubContent{}

	publisher, err := gallery.NewPublisher(git, cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("gallery.NewPublisher: %v", err)
	}
	st := workbook.NewWithDependencies(cfg, store, logging.NewNop(), content, render, publisher)
	return &stageHarness{cfg: cfg, store: store, content: content, git: git, stage: st}
}

func TestExecutePublishesWorkbooks(t *testing.T) {
	asset := publishedAsset()
	git := &fakeGit{seedAssets: []gallery.Asset{asset}, seedFiles: seedFilesFor(asset)}
	h := newHarness(t, git, newRenderer(nil))
	ctx := context.Background()

	job := testsupport.NewFollowupJob(t, h.store, asset.Dir(), asset.Category, asset.Filename, asset.Title, asset.ID)
	if err := h.stage.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantCalls := []string{"clone", "add", "commit", "push"}
	if !reflect.DeepEqual(git.calls, wantCalls) {
		t.Fatalf("unexpected git calls: %v", git.calls)
	}
	snapshot := git.snapshots[0]

	var assets []gallery.Asset
	if err := json.Unmarshal([]byte(snapshot["data/assets.json"]), &assets); err != nil {
		t.Fatalf("decode committed assets.json: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("expected one asset record, got %d", len(assets))
	}
	updated := assets[0]
	if len(updated.Workbooks) != 3 {
		t.Fatalf("expected three workbooks, got %v", updated.Workbooks)
	}
	for band, target := range updated.Workbooks {
		if !strings.HasSuffix(target, ".pdf") {
			t.Fatalf("expected PDF workbook for band %s, got %q", band, target)
		}
		if snapshot[target] == "" {
			t.Fatalf("committed tree missing %s", target)
		}
	}
	markdown := snapshot["assets/life-science/7-pond-frog/workbook-k-2.md"]
	if !strings.HasPrefix(markdown, "# Pond Frog Explorations\n") {
		t.Fatalf("unexpected workbook heading: %q", markdown)
	}
	if !strings.Contains(markdown, "## Activity 1: Habitat Hunt") {
		t.Fatalf("workbook missing first activity: %q", markdown)
	}
	if !strings.Contains(markdown, "1. Walk the schoolyard edge.") {
		t.Fatalf("workbook missing numbered instructions: %q", markdown)
	}

	wantCost := 0.5 + 0.0045
	if math.Abs(updated.ProcessingCost-wantCost) > 1e-9 {
		t.Fatalf("cost not summed onto primary total: %v", updated.ProcessingCost)
	}
	if updated.ProcessingTime <= 10.0 {
		t.Fatalf("time not summed onto primary total: %v", updated.ProcessingTime)
	}
	if updated.ProcessedAt == nil {
		t.Fatal("expected processedAt to be restamped")
	}

	firstLine := strings.SplitN(git.messages[0], "\n", 2)[0]
	if firstLine != "Workbooks for Pond Frog (life-science #7)" {
		t.Fatalf("unexpected commit subject: %q", firstLine)
	}

	if len(h.content.jsonCalls) != 3 {
		t.Fatalf("expected three workbook calls, got %d", len(h.content.jsonCalls))
	}
	if !strings.Contains(h.content.jsonCalls[0], "Observe pond life closely.") {
		t.Fatalf("workbook prompt missing lesson excerpt: %q", h.content.jsonCalls[0])
	}

	if snapshot["data/coverage.json"] == "" {
		t.Fatal("committed tree missing coverage index")
	}
}

func TestExecuteFailsWhenAssetMissing(t *testing.T) {
	git := &fakeGit{}
	h := newHarness(t, git, newRenderer(nil))

	job := testsupport.NewFollowupJob(t, h.store, "assets/life-science/7-pond-frog", "life-science", "Pond Frog.jpg", "Pond Frog", 7)
	err := h.stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if !reflect.DeepEqual(git.calls, []string{"clone"}) {
		t.Fatalf("missing asset should not publish, git calls: %v", git.calls)
	}
}

func TestExecuteRejectsPayloadMissingActivities(t *testing.T) {
	asset := publishedAsset()
	git := &fakeGit{seedAssets: []gallery.Asset{asset}, seedFiles: seedFilesFor(asset)}
	h := newHarness(t, git, newRenderer(nil))
	h.content.body = `{"title": "Empty Workbook"}`

	job := testsupport.NewFollowupJob(t, h.store, asset.Dir(), asset.Category, asset.Filename, asset.Title, asset.ID)
	err := h.stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema violation detail, got %v", err)
	}
	if !reflect.DeepEqual(git.calls, []string{"clone"}) {
		t.Fatalf("invalid payload should not publish, git calls: %v", git.calls)
	}
}

func TestExecuteKeepsMarkdownWhenPDFRenderFails(t *testing.T) {
	asset := publishedAsset()
	git := &fakeGit{seedAssets: []gallery.Asset{asset}, seedFiles: seedFilesFor(asset)}
	h := newHarness(t, git, newRenderer(errors.New("pandoc exploded")))

	job := testsupport.NewFollowupJob(t, h.store, asset.Dir(), asset.Category, asset.Filename, asset.Title, asset.ID)
	if err := h.stage.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	snapshot := git.snapshots[0]
	var assets []gallery.Asset
	if err := json.Unmarshal([]byte(snapshot["data/assets.json"]), &assets); err != nil {
		t.Fatalf("decode committed assets.json: %v", err)
	}
	for band, target := range assets[0].Workbooks {
		if !strings.HasSuffix(target, ".md") {
			t.Fatalf("expected markdown fallback for band %s, got %q", band, target)
		}
		if snapshot[target] == "" {
			t.Fatalf("committed tree missing %s", target)
		}
	}
}

func TestExecuteRejectsJobWithoutAssetID(t *testing.T) {
	git := &fakeGit{}
	h := newHarness(t, git, newRenderer(nil))

	job := &queue.Job{Type: queue.TypeFollowup, SourceRef: "assets/life-science/7-pond-frog"}
	err := h.stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(git.calls) != 0 {
		t.Fatalf("validation failure should not touch git, calls: %v", git.calls)
	}
}
