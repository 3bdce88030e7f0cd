package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldpress/internal/config"
	"fieldpress/internal/queue"
	"fieldpress/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
	baseDir    string
}

// setupCLIEnv builds a config file plus open queue store for command tests.
// HOME is redirected so commands that consult the default config location
// never see the developer's real configuration.
func setupCLIEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
inbox_dir = %q
processed_dir = %q
duplicates_dir = %q
state_dir = %q
log_dir = %q
work_dir = %q

[llm]
api_key = %q

[gallery]
remote_url = %q

[daemon]
api_bind = %q
`,
		cfg.Paths.InboxDir,
		cfg.Paths.ProcessedDir,
		cfg.Paths.DuplicatesDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.WorkDir,
		cfg.LLM.APIKey,
		cfg.Gallery.RemoteURL,
		cfg.Daemon.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newTestPhoto(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	path := filepath.Join(env.baseDir, "uploads", "photo.jpg")
	testsupport.WriteImage(t, path, 2048)
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
