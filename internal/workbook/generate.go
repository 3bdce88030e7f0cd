package workbook

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"fieldpress/internal/coverage"
	"fieldpress/internal/gallery"
	"fieldpress/internal/logging"
	"fieldpress/internal/metrics"
	"fieldpress/internal/queue"
	"fieldpress/internal/services"
	"fieldpress/internal/services/llm"
	"fieldpress/internal/services/renderer"
	"fieldpress/internal/standards"
	"fieldpress/internal/textutil"
)

type workbookPayload struct {
	Title        string             `json:"title"`
	Introduction string             `json:"introduction"`
	Activities   []workbookActivity `json:"activities"`
}

type workbookActivity struct {
	Name                string   `json:"name"`
	Materials           []string `json:"materials"`
	Instructions        []string `json:"instructions"`
	ReflectionQuestions []string `json:"reflection_questions"`
}

// Execute generates per-band activity workbooks for an already published
// asset. Cost and time are summed onto the primary stage's recorded totals;
// a failed attempt discards its working copy, so retries recompute the sums
// from the published record and never double count.
func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	stageStart := time.Now()

	if job.AssetID <= 0 {
		return services.Wrap(
			services.ErrValidation, "workbook", "validate job",
			"Follow-up job carries no asset id", nil)
	}
	if strings.TrimSpace(job.SourceRef) == "" {
		return services.Wrap(
			services.ErrValidation, "workbook", "validate job",
			"Follow-up job carries no asset directory", nil)
	}

	wc, err := s.publisher.Acquire(ctx, []string{"data", job.SourceRef})
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "workbook", "acquire working copy",
			"Could not clone the asset library; check the gallery remote", err)
	}
	defer wc.Close()

	assets, err := wc.Assets()
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "workbook", "load asset index",
			"Asset index unreadable in fresh working copy", err)
	}
	rec := gallery.FindByID(assets, job.AssetID)
	if rec == nil {
		return services.Wrap(
			services.ErrNotFound, "workbook", "locate asset",
			fmt.Sprintf("Asset #%d is not in the library index", job.AssetID), nil)
	}

	title := strings.TrimSpace(rec.Title)
	if title == "" {
		title = strings.TrimSpace(job.Title)
	}
	if title == "" {
		title = job.Filename
	}
	job.Title = title

	assetDir := rec.Dir()
	absAssetDir := wc.Path(assetDir)
	if err := os.MkdirAll(absAssetDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrTransient, "workbook", "prepare asset directory",
			"Could not create the asset directory in the working copy", err)
	}

	primaryCost := rec.ProcessingCost
	primaryTime := rec.ProcessingTime

	var usage llm.Usage
	if rec.Workbooks == nil {
		rec.Workbooks = make(map[string]string, len(standards.GradeBands()))
	}
	for _, band := range standards.GradeBands() {
		excerpt := lessonExcerpt(wc, rec, band)
		result, err := s.content.CompleteJSON(ctx, WorkbookSystemPrompt, workbookUserPrompt(title, band, excerpt), nil)
		if err != nil {
			return services.Wrap(
				services.ErrTransient, "workbook", "generate workbook",
				fmt.Sprintf("Workbook generation failed for grades %s", band), err)
		}
		usage = usage.Add(result.Usage)
		metrics.ObserveLLMUsage(result.Usage, s.content.Cost(result.Usage))

		var payload workbookPayload
		if err := llm.DecodeValidatedJSON(result.Content, workbookSchema, &payload); err != nil {
			return services.Wrap(
				services.ErrTransient, "workbook", "validate workbook payload",
				fmt.Sprintf("Workbook payload invalid for grades %s", band), err)
		}

		name := workbookFileName(band)
		markdown := composeWorkbookMarkdown(title, band, payload)
		if err := os.WriteFile(filepath.Join(absAssetDir, name), []byte(markdown), 0o644); err != nil {
			return services.Wrap(
				services.ErrTransient, "workbook", "write workbook",
				fmt.Sprintf("Could not write the grades %s workbook file", band), err)
		}

		pdfName := strings.TrimSuffix(name, ".md") + ".pdf"
		doc := renderer.Document{
			MarkdownPath: filepath.Join(absAssetDir, name),
			OutputPath:   filepath.Join(absAssetDir, pdfName),
			ResourceDir:  absAssetDir,
			Title:        title,
			Subtitle:     "Grades " + band,
		}
		if err := s.pdfs.Render(ctx, doc); err != nil {
			logger.Warn("workbook PDF render failed",
				logging.String("grade_band", band),
				logging.Error(err),
			)
			rec.Workbooks[band] = path.Join(assetDir, name)
		} else {
			rec.Workbooks[band] = path.Join(assetDir, pdfName)
		}
		logger.Info("generated workbook",
			logging.String("grade_band", band),
			logging.Int("activities", len(payload.Activities)),
			logging.Int64("completion_tokens", result.Usage.CompletionTokens),
		)
	}

	costDelta := s.content.Cost(usage)
	rec.ProcessingCost = primaryCost + costDelta
	rec.ProcessingTime = primaryTime + time.Since(stageStart).Seconds()
	processedAt := time.Now().UTC()
	rec.ProcessedAt = &processedAt

	if err := wc.SaveAssets(assets); err != nil {
		return services.Wrap(
			services.ErrTransient, "workbook", "write asset index",
			"Could not write the updated asset index", err)
	}
	if _, err := coverage.Rebuild(wc.Root(), processedAt); err != nil {
		return services.Wrap(
			services.ErrTransient, "workbook", "rebuild coverage index",
			"Could not rebuild the coverage index", err)
	}

	summary := gallery.CommitSummary{
		Action:    "Workbooks for",
		Title:     title,
		Category:  rec.Category,
		AssetID:   rec.ID,
		Workbooks: len(rec.Workbooks),
		Cost:      costDelta,
	}
	if err := wc.Commit(ctx, summary.Message()); err != nil {
		return services.Wrap(
			services.ErrExternalTool, "workbook", "commit workbooks",
			"Could not commit the workbooks to the library clone", err)
	}
	if err := wc.Publish(ctx); err != nil {
		return services.Wrap(
			services.ErrTransient, "workbook", "publish workbooks",
			"Could not push to the asset library; the job will retry", err)
	}

	logger.Info("workbook stage complete",
		logging.Int64("asset_id", rec.ID),
		logging.Int("workbooks", len(rec.Workbooks)),
		logging.Float64("cost_dollars", costDelta),
		logging.Float64("total_cost_dollars", rec.ProcessingCost),
		logging.Float64("elapsed_seconds", time.Since(stageStart).Seconds()),
	)
	return nil
}

// lessonExcerpt reads the published lesson markdown for a band so the
// workbook prompt can build on it. Missing lessons produce an empty excerpt.
func lessonExcerpt(wc *gallery.WorkingCopy, rec *gallery.Asset, band string) string {
	entry, ok := rec.Lessons[band]
	if !ok || entry.MarkdownPath == "" {
		return ""
	}
	data, err := os.ReadFile(wc.Path(filepath.FromSlash(entry.MarkdownPath)))
	if err != nil {
		return ""
	}
	return string(data)
}

func workbookFileName(band string) string {
	return "workbook-" + textutil.Slugify(band) + ".md"
}

func composeWorkbookMarkdown(title, band string, payload workbookPayload) string {
	var b strings.Builder
	heading := strings.TrimSpace(payload.Title)
	if heading == "" {
		heading = title + " Workbook"
	}
	fmt.Fprintf(&b, "# %s\n\n", heading)
	fmt.Fprintf(&b, "*Grades %s*\n\n", band)
	if intro := strings.TrimSpace(payload.Introduction); intro != "" {
		b.WriteString(intro)
		b.WriteString("\n\n")
	}
	for i, activity := range payload.Activities {
		fmt.Fprintf(&b, "## Activity %d: %s\n\n", i+1, strings.TrimSpace(activity.Name))
		if len(activity.Materials) > 0 {
			b.WriteString("**Materials**\n\n")
			for _, material := range activity.Materials {
				fmt.Fprintf(&b, "- %s\n", material)
			}
			b.WriteString("\n")
		}
		b.WriteString("**Instructions**\n\n")
		for j, step := range activity.Instructions {
			fmt.Fprintf(&b, "%d. %s\n", j+1, step)
		}
		b.WriteString("\n")
		if len(activity.ReflectionQuestions) > 0 {
			b.WriteString("**Think About It**\n\n")
			for _, question := range activity.ReflectionQuestions {
				fmt.Fprintf(&b, "- %s\n", question)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
