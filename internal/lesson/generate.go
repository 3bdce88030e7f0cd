package lesson

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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
	"fieldpress/internal/services/optimizer"
	"fieldpress/internal/services/renderer"
	"fieldpress/internal/stage"
	"fieldpress/internal/standards"
	"fieldpress/internal/textutil"
)

// Execute runs the full primary-generation flow for one photograph. Every
// step before the final publish leaves the inbox source untouched, so a
// requeued job repeats cleanly from the top.
func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	stageStart := time.Now()

	if !standards.IsCategory(job.Category) {
		return services.Wrap(
			services.ErrValidation, "lesson", "validate category",
			fmt.Sprintf("Unknown category %q; expected one of %s",
				job.Category, strings.Join(standards.Categories(), ", ")), nil)
	}
	sourceSize, err := stage.CheckSource(job.SourceRef, s.cfg.MaxSourceBytes())
	if err != nil {
		return err
	}
	logger.Info("validated source photo",
		logging.String("source", job.SourceRef),
		logging.Int64("size_bytes", sourceSize),
	)

	wc, err := s.publisher.Acquire(ctx, []string{"data", path.Join("assets", job.Category)})
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "lesson", "acquire working copy",
			"Could not clone the asset library; check the gallery remote", err)
	}
	defer wc.Close()

	assets, err := wc.Assets()
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "lesson", "load asset index",
			"Asset index unreadable in fresh working copy", err)
	}

	existing := gallery.FindBySource(assets, job.Filename, job.Category)
	if existing != nil && !job.Reprocess {
		target, moveErr := s.organizer.MoveDuplicate(job.SourceRef, job.Category)
		if moveErr != nil {
			return services.Wrap(
				services.ErrTransient, "lesson", "move duplicate",
				"Duplicate source could not be moved out of the inbox", moveErr)
		}
		logger.Info("duplicate source skipped",
			logging.Int64("asset_id", existing.ID),
			logging.String("moved_to", target),
		)
		job.Title = existing.Title
		job.AssetID = existing.ID
		return nil
	}

	title := textutil.DeriveTitle(job.SourceRef)
	slug := textutil.Slugify(title)
	record := gallery.Asset{
		Filename: job.Filename,
		Category: job.Category,
		Title:    title,
		Slug:     slug,
	}
	if existing != nil {
		record.ID = existing.ID
		if strings.TrimSpace(existing.Title) != "" {
			record.Title = existing.Title
			record.Slug = existing.Slug
		}
		record.Workbooks = existing.Workbooks
	} else {
		record.ID = gallery.NextID(assets)
	}
	job.Title = record.Title
	job.AssetID = record.ID

	assetDir := record.Dir()
	absAssetDir := wc.Path(assetDir)

	variants, err := s.variants.Generate(ctx, job.SourceRef, absAssetDir, func(kind string, variantErr error) {
		logger.Warn("variant generation failed",
			logging.String("variant", kind),
			logging.Error(variantErr),
		)
	})
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool, "lesson", "generate variants",
			"ImageMagick could not process the source photo", err)
	}
	for _, variant := range variants {
		rel := path.Join(assetDir, filepath.Base(variant.Path))
		switch variant.Kind {
		case optimizer.KindPhoto:
			record.PhotoPath = rel
		case optimizer.KindThumb:
			record.ThumbPath = rel
		case optimizer.KindPlaceholder:
			record.PlaceholderPath = rel
		}
	}
	logger.Info("generated image variants",
		logging.Int("variants", len(variants)),
		logging.String("asset_dir", assetDir),
	)

	assets = upsertAsset(assets, record)
	if err := wc.SaveAssets(assets); err != nil {
		return services.Wrap(
			services.ErrTransient, "lesson", "write asset index",
			"Could not write the asset index skeleton", err)
	}
	rec := gallery.FindByID(assets, record.ID)

	image, err := llm.NewImageAttachment(job.SourceRef)
	if err != nil {
		return services.Wrap(
			services.ErrValidation, "lesson", "attach source photo",
			"Source photo could not be encoded for the content service", err)
	}

	var usage llm.Usage
	rec.Lessons = make(map[string]gallery.Lesson, len(standards.GradeBands()))
	rec.NGSSStandards = make(map[string][]string, len(standards.GradeBands()))
	photoName := ""
	if rec.PhotoPath != "" {
		photoName = filepath.Base(rec.PhotoPath)
	}
	for _, band := range standards.GradeBands() {
		result, err := s.content.Complete(ctx, LessonSystemPrompt, lessonUserPrompt(rec.Title, job.Category, band), image)
		if err != nil {
			return services.Wrap(
				services.ErrTransient, "lesson", "generate lesson",
				fmt.Sprintf("Lesson generation failed for grades %s", band), err)
		}
		usage = usage.Add(result.Usage)
		metrics.ObserveLLMUsage(result.Usage, s.content.Cost(result.Usage))

		name := lessonFileName(band)
		markdown := composeLessonMarkdown(rec.Title, band, photoName, result.Content)
		if err := os.WriteFile(filepath.Join(absAssetDir, name), []byte(markdown), 0o644); err != nil {
			return services.Wrap(
				services.ErrTransient, "lesson", "write lesson",
				fmt.Sprintf("Could not write the grades %s lesson file", band), err)
		}
		rec.Lessons[band] = gallery.Lesson{MarkdownPath: path.Join(assetDir, name)}

		codes := standards.FilterByDomain(standards.ExtractCodes(result.Content), job.Category)
		rec.NGSSStandards[band] = codes
		logger.Info("generated lesson",
			logging.String("grade_band", band),
			logging.Int("standards", len(codes)),
			logging.Int64("completion_tokens", result.Usage.CompletionTokens),
		)
	}

	keywords, keywordUsage, err := s.generateKeywords(ctx, rec.Title, job.Category, image)
	usage = usage.Add(keywordUsage)
	if err != nil {
		logger.Warn("keyword generation failed", logging.Error(err))
	} else {
		rec.Keywords = keywords
		logger.Info("generated keywords", logging.Int("keywords", len(keywords)))
	}

	for _, band := range standards.GradeBands() {
		entry, ok := rec.Lessons[band]
		if !ok {
			continue
		}
		markdownName := filepath.Base(entry.MarkdownPath)
		pdfName := strings.TrimSuffix(markdownName, ".md") + ".pdf"
		doc := renderer.Document{
			MarkdownPath: filepath.Join(absAssetDir, markdownName),
			OutputPath:   filepath.Join(absAssetDir, pdfName),
			ResourceDir:  absAssetDir,
			Title:        rec.Title,
			Subtitle:     "Grades " + band,
		}
		if err := s.pdfs.Render(ctx, doc); err != nil {
			logger.Warn("lesson PDF render failed",
				logging.String("grade_band", band),
				logging.Error(err),
			)
			continue
		}
		entry.PDFPath = path.Join(assetDir, pdfName)
		rec.Lessons[band] = entry
	}

	if err := s.enqueueFollowup(ctx, job, rec, assetDir, logger); err != nil {
		return err
	}

	rec.HasContent = true
	rec.ProcessingCost = s.content.Cost(usage)
	rec.ProcessingTime = time.Since(stageStart).Seconds()
	processedAt := time.Now().UTC()
	rec.ProcessedAt = &processedAt

	if err := wc.SaveAssets(assets); err != nil {
		return services.Wrap(
			services.ErrTransient, "lesson", "write asset index",
			"Could not write the final asset index", err)
	}
	if _, err := coverage.Rebuild(wc.Root(), processedAt); err != nil {
		return services.Wrap(
			services.ErrTransient, "lesson", "rebuild coverage index",
			"Could not rebuild the coverage index", err)
	}

	summary := gallery.CommitSummary{
		Action:     "Add",
		Title:      rec.Title,
		Category:   job.Category,
		AssetID:    rec.ID,
		Variants:   len(variants),
		Lessons:    len(rec.Lessons),
		LessonPDFs: countLessonPDFs(rec.Lessons),
		Keywords:   len(rec.Keywords),
		Standards:  countDistinctStandards(rec.NGSSStandards),
		Cost:       rec.ProcessingCost,
	}
	if existing != nil {
		summary.Action = "Reprocess"
	}
	if err := wc.Commit(ctx, summary.Message()); err != nil {
		return services.Wrap(
			services.ErrExternalTool, "lesson", "commit asset",
			"Could not commit the asset to the library clone", err)
	}
	if err := wc.Publish(ctx); err != nil {
		return services.Wrap(
			services.ErrTransient, "lesson", "publish asset",
			"Could not push to the asset library; the job will retry", err)
	}

	processedPath, err := s.organizer.MoveProcessed(job.SourceRef, job.Category)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "lesson", "relocate source",
			"Asset published but the source could not leave the inbox", err)
	}

	logger.Info("lesson stage complete",
		logging.Int64("asset_id", rec.ID),
		logging.String("title", rec.Title),
		logging.String("processed_path", processedPath),
		logging.Float64("cost_dollars", rec.ProcessingCost),
		logging.Float64("elapsed_seconds", rec.ProcessingTime),
	)
	return nil
}

// enqueueFollowup schedules workbook generation for the asset unless an
// active follow-up already references it, which happens when a publish
// failure requeues the primary job.
func (s *Stage) enqueueFollowup(ctx context.Context, job *queue.Job, rec *gallery.Asset, assetDir string, logger *slog.Logger) error {
	active, err := s.store.FindActiveBySource(ctx, assetDir)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "lesson", "enqueue follow-up",
			"Could not check for an existing follow-up job", err)
	}
	if active != nil {
		return nil
	}
	followup, err := s.store.NewFollowup(ctx, assetDir, job.Category, job.Filename, rec.Title, rec.ID)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "lesson", "enqueue follow-up",
			"Could not enqueue the workbook follow-up job", err)
	}
	logger.Info("enqueued follow-up generation",
		logging.Int64("followup_job_id", followup.ID),
		logging.Int64("asset_id", rec.ID),
	)
	return nil
}

type keywordPayload struct {
	Keywords []string `json:"keywords"`
}

// generateKeywords asks the content service for search keywords. The returned
// usage is non-zero whenever a request was billed, including decode failures.
func (s *Stage) generateKeywords(ctx context.Context, title, category string, image *llm.ImageAttachment) ([]string, llm.Usage, error) {
	result, err := s.content.CompleteJSON(ctx, KeywordSystemPrompt, keywordUserPrompt(title, category), image)
	if err != nil {
		return nil, llm.Usage{}, err
	}
	metrics.ObserveLLMUsage(result.Usage, s.content.Cost(result.Usage))

	var payload keywordPayload
	if err := llm.DecodeLLMJSON(result.Content, &payload); err != nil {
		return nil, result.Usage, err
	}
	keywords := make([]string, 0, len(payload.Keywords))
	seen := make(map[string]struct{}, len(payload.Keywords))
	for _, keyword := range payload.Keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if _, dup := seen[keyword]; dup {
			continue
		}
		seen[keyword] = struct{}{}
		keywords = append(keywords, keyword)
	}
	if len(keywords) == 0 {
		return nil, result.Usage, errors.New("content service returned no usable keywords")
	}
	return keywords, result.Usage, nil
}

func upsertAsset(assets []gallery.Asset, record gallery.Asset) []gallery.Asset {
	for i := range assets {
		if assets[i].ID == record.ID {
			assets[i] = record
			return assets
		}
	}
	return append(assets, record)
}

func lessonFileName(band string) string {
	return "lesson-" + textutil.Slugify(band) + ".md"
}

func composeLessonMarkdown(title, band, photoName, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "*Grades %s*\n\n", band)
	if photoName != "" {
		fmt.Fprintf(&b, "![%s](%s)\n\n", title, photoName)
	}
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n")
	return b.String()
}

func countLessonPDFs(lessons map[string]gallery.Lesson) int {
	count := 0
	for _, entry := range lessons {
		if entry.PDFPath != "" {
			count++
		}
	}
	return count
}

func countDistinctStandards(byBand map[string][]string) int {
	seen := make(map[string]struct{})
	for _, codes := range byBand {
		for _, code := range codes {
			seen[code] = struct{}{}
		}
	}
	return len(seen)
}
