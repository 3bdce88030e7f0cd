// Package workbook implements the followup-generation stage: it downloads a
// published asset, generates one structured activity workbook per grade band,
// renders the PDFs, and republishes the asset record with cost and time
// summed onto the primary stage's totals.
package workbook

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"fieldpress/internal/config"
	"fieldpress/internal/gallery"
	"fieldpress/internal/logging"
	"fieldpress/internal/metrics"
	"fieldpress/internal/queue"
	"fieldpress/internal/services/gitcli"
	"fieldpress/internal/services/llm"
	"fieldpress/internal/services/renderer"
	"fieldpress/internal/stage"
)

//go:embed workbook_schema.json
var workbookSchemaJSON []byte

// workbookSchema validates every structured payload the content service
// returns before it is decoded.
var workbookSchema = llm.MustCompileSchema("workbook_schema.json", workbookSchemaJSON)

// ContentClient is the slice of the llm client the stage depends on.
type ContentClient interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, image *llm.ImageAttachment) (llm.Result, error)
	Cost(usage llm.Usage) float64
}

var _ ContentClient = (*llm.Client)(nil)

// Stage runs workbook generation for published assets.
type Stage struct {
	cfg       *config.Config
	store     *queue.Store
	logger    *slog.Logger
	content   ContentClient
	pdfs      renderer.Renderer
	publisher *gallery.Publisher
}

// New wires the stage with production dependencies from configuration.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Stage, error) {
	llmCfg := cfg.GetLLM()
	content := llm.NewClient(llm.Config{
		APIKey:                 llmCfg.APIKey,
		BaseURL:                llmCfg.BaseURL,
		Model:                  llmCfg.Model,
		Referer:                llmCfg.Referer,
		Title:                  llmCfg.Title,
		TimeoutSeconds:         llmCfg.TimeoutSeconds,
		RequestIntervalSeconds: llmCfg.RequestIntervalSeconds,
		PromptCostPerMTok:      llmCfg.PromptCostPerMTok,
		CompletionCostPerMTok:  llmCfg.CompletionCostPerMTok,
	})
	pdfs := renderer.New(renderer.Config{
		Binary:         cfg.Renderer.Binary,
		PDFEngine:      cfg.Renderer.PDFEngine,
		TimeoutSeconds: cfg.Renderer.TimeoutSeconds,
	})
	git, err := gitcli.New(gitcli.Config{
		Binary:         cfg.Gallery.GitBinary,
		RemoteURL:      cfg.Gallery.RemoteURL,
		Branch:         cfg.Gallery.Branch,
		AuthorName:     cfg.Gallery.AuthorName,
		AuthorEmail:    cfg.Gallery.AuthorEmail,
		TimeoutSeconds: cfg.Gallery.TimeoutSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("configure gallery git client: %w", err)
	}
	publisher, err := gallery.NewPublisher(git, cfg.Paths.WorkDir,
		gallery.WithLogger(logger),
		gallery.WithPushRetries(cfg.Gallery.PushRetries),
		gallery.WithConflictHook(metrics.PublishRetries.Inc),
	)
	if err != nil {
		return nil, fmt.Errorf("configure gallery publisher: %w", err)
	}
	return NewWithDependencies(cfg, store, logger, content, pdfs, publisher), nil
}

// NewWithDependencies allows injecting custom dependencies (used for tests).
func NewWithDependencies(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	content ContentClient,
	pdfs renderer.Renderer,
	publisher *gallery.Publisher,
) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		cfg:       cfg,
		store:     store,
		logger:    logging.NewComponentLogger(logger, "workbook"),
		content:   content,
		pdfs:      pdfs,
		publisher: publisher,
	}
}

// Prepare resets per-attempt job state before Execute runs.
func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	job.LastError = ""
	logger.Debug("starting workbook preparation",
		logging.Int64("asset_id", job.AssetID),
		logging.String("asset_dir", job.SourceRef),
	)
	return nil
}

// HealthCheck verifies the stage's configuration and external binaries.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "workbook"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if s.content == nil {
		return stage.Unhealthy(name, "content client unavailable")
	}
	if s.publisher == nil {
		return stage.Unhealthy(name, "gallery publisher unavailable")
	}
	if strings.TrimSpace(s.cfg.GetLLM().APIKey) == "" {
		return stage.Unhealthy(name, "llm api key not configured")
	}
	if strings.TrimSpace(s.cfg.Gallery.RemoteURL) == "" {
		return stage.Unhealthy(name, "gallery remote not configured")
	}
	for _, binary := range []string{s.cfg.Renderer.Binary, s.cfg.Gallery.GitBinary} {
		binary = strings.TrimSpace(binary)
		if binary == "" {
			return stage.Unhealthy(name, "external binary not configured")
		}
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy(name, fmt.Sprintf("binary %q not found", binary))
		}
	}
	return stage.Healthy(name)
}
