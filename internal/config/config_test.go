package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"fieldpress/internal/config"
)

func writeConfigFile(t *testing.T, path string, payload any) {
	t.Helper()
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config payload: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

type galleryPayload struct {
	Gallery struct {
		RemoteURL string `toml:"remote_url"`
	} `toml:"gallery"`
}

func TestLoadDefaultPathUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	custom := galleryPayload{}
	custom.Gallery.RemoteURL = "https://git.example.com/assets.git"
	configPath := filepath.Join(tempHome, ".config", "fieldpress", "config.toml")
	writeConfigFile(t, configPath, custom)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file at the default location to be found")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}

	wantInbox := filepath.Join(tempHome, "fieldpress", "inbox")
	if cfg.Paths.InboxDir != wantInbox {
		t.Fatalf("unexpected inbox dir: got %q want %q", cfg.Paths.InboxDir, wantInbox)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "fieldpress")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Gallery.RemoteURL != "https://git.example.com/assets.git" {
		t.Fatalf("unexpected remote url: %q", cfg.Gallery.RemoteURL)
	}
	if cfg.Gallery.Branch != "main" {
		t.Fatalf("expected default branch main, got %q", cfg.Gallery.Branch)
	}
	if cfg.Daemon.APIBind != "127.0.0.1:7519" {
		t.Fatalf("unexpected api bind: %q", cfg.Daemon.APIBind)
	}
	if cfg.Ingest.DefaultCategory != "life-science" {
		t.Fatalf("unexpected default category: %q", cfg.Ingest.DefaultCategory)
	}
	if got := cfg.MaxSourceBytes(); got != 2*1024*1024 {
		t.Fatalf("unexpected source cap: %d", got)
	}
	if cfg.Workflow.QueuePollInterval != config.Default().Workflow.QueuePollInterval {
		t.Fatalf("unexpected poll interval: %d", cfg.Workflow.QueuePollInterval)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.InboxDir, cfg.Paths.ProcessedDir, cfg.Paths.DuplicatesDir, cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.WorkDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadWithoutRemoteURLFails(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	t.Setenv("HOME", t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error when gallery.remote_url is unset")
	}
	if !strings.Contains(err.Error(), "gallery.remote_url") {
		t.Fatalf("expected remote_url hint in error, got %v", err)
	}
}

func TestLoadWithoutAPIKeyFails(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	tempDir := t.TempDir()

	custom := galleryPayload{}
	custom.Gallery.RemoteURL = "https://git.example.com/assets.git"
	configPath := filepath.Join(tempDir, "fieldpress.toml")
	writeConfigFile(t, configPath, custom)

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected error when llm.api_key is unset")
	}
	if !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("expected api_key hint in error, got %v", err)
	}
}

func TestLoadCustomPathOverrides(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "fieldpress.toml")

	type payload struct {
		Gallery struct {
			RemoteURL string `toml:"remote_url"`
			Branch    string `toml:"branch"`
		} `toml:"gallery"`
		Ingest struct {
			MaxSourceMiB    int    `toml:"max_source_mib"`
			DefaultCategory string `toml:"default_category"`
		} `toml:"ingest"`
		Workflow struct {
			QueuePollInterval int `toml:"queue_poll_interval"`
			StaleJobMinutes   int `toml:"stale_job_minutes"`
		} `toml:"workflow"`
		LLM struct {
			RequestIntervalSeconds int `toml:"request_interval_seconds"`
		} `toml:"llm"`
	}
	custom := payload{}
	custom.Gallery.RemoteURL = "git@example.com:gallery/assets.git"
	custom.Gallery.Branch = "trunk"
	custom.Ingest.MaxSourceMiB = 4
	custom.Ingest.DefaultCategory = "Earth-Space"
	custom.Workflow.QueuePollInterval = 10
	custom.Workflow.StaleJobMinutes = 5
	writeConfigFile(t, configPath, custom)

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Gallery.Branch != "trunk" {
		t.Fatalf("expected branch override, got %q", cfg.Gallery.Branch)
	}
	if cfg.Ingest.MaxSourceMiB != 4 {
		t.Fatalf("expected source cap override, got %d", cfg.Ingest.MaxSourceMiB)
	}
	if cfg.Ingest.DefaultCategory != "earth-space" {
		t.Fatalf("expected normalized category, got %q", cfg.Ingest.DefaultCategory)
	}
	if cfg.Workflow.QueuePollInterval != 10 {
		t.Fatalf("expected poll interval override, got %d", cfg.Workflow.QueuePollInterval)
	}
	if cfg.LLM.RequestIntervalSeconds != 0 {
		t.Fatalf("expected explicit zero request interval, got %d", cfg.LLM.RequestIntervalSeconds)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "OPENROUTER_API_KEY") {
		t.Fatalf("sample config missing API key guidance: %s", contents)
	}
	if !strings.Contains(string(contents), "[gallery]") {
		t.Fatalf("sample config missing gallery section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Ingest.MaxSourceMiB != 2 {
		t.Fatalf("expected sample source cap 2 MiB, got %d", cfg.Ingest.MaxSourceMiB)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.LLM.APIKey = "key"
		cfg.Gallery.RemoteURL = "https://git.example.com/assets.git"
		return cfg
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid baseline, got %v", err)
	}

	cfg = valid()
	cfg.Workflow.QueuePollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive poll interval")
	}

	cfg = valid()
	cfg.Workflow.StaleJobMinutes = 1
	cfg.Workflow.QueuePollInterval = 60
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when stale threshold does not exceed poll interval")
	}

	cfg = valid()
	cfg.Ingest.DefaultCategory = "botany"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown category")
	}

	cfg = valid()
	cfg.Ingest.MaxSourceMiB = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive source cap")
	}

	cfg = valid()
	cfg.Optimizer.WebQuality = 101
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range web quality")
	}
}
