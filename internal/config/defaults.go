package config

const (
	defaultInboxDir      = "~/fieldpress/inbox"
	defaultProcessedDir  = "~/fieldpress/processed"
	defaultDuplicatesDir = "~/fieldpress/duplicates"
	defaultStateDir      = "~/.local/share/fieldpress"
	defaultLogDir        = "~/.local/share/fieldpress/logs"
	defaultWorkDir       = "~/.local/share/fieldpress/work"
	defaultAPIBind       = "127.0.0.1:7519"

	defaultRescanIntervalMinutes = 5
	defaultMaxSourceMiB          = 2
	defaultCategory              = "life-science"

	defaultQueuePollInterval       = 30
	defaultStaleJobMinutes         = 12
	defaultMaxAttempts             = 3
	defaultCompletedRetentionHours = 24

	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-3-flash-preview"
	defaultLLMReferer             = "https://github.com/fieldpress/fieldpress"
	defaultLLMTitle               = "Fieldpress Lesson Generator"
	defaultLLMTimeoutSeconds      = 120
	defaultRequestIntervalSeconds = 2
	defaultPromptCostPerMTok      = 0.10
	defaultCompletionCostPerMTok  = 0.40

	defaultOptimizerBinary         = "magick"
	defaultOptimizerTimeoutSeconds = 120
	defaultThumbWidth              = 320
	defaultWebWidth                = 1280
	defaultPlaceholderWidth        = 24
	defaultWebQuality              = 82

	defaultRendererBinary         = "pandoc"
	defaultPDFEngine              = "xelatex"
	defaultRendererTimeoutSeconds = 180

	defaultGalleryBranch         = "main"
	defaultGalleryAuthorName     = "fieldpress"
	defaultGalleryAuthorEmail    = "fieldpress@localhost"
	defaultGalleryPushRetries    = 2
	defaultGitBinary             = "git"
	defaultGalleryTimeoutSeconds = 300

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:      defaultInboxDir,
			ProcessedDir:  defaultProcessedDir,
			DuplicatesDir: defaultDuplicatesDir,
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
			WorkDir:       defaultWorkDir,
		},
		Ingest: Ingest{
			Watch:                 true,
			RescanIntervalMinutes: defaultRescanIntervalMinutes,
			MaxSourceMiB:          defaultMaxSourceMiB,
			DefaultCategory:       defaultCategory,
		},
		Workflow: Workflow{
			QueuePollInterval:       defaultQueuePollInterval,
			StaleJobMinutes:         defaultStaleJobMinutes,
			MaxAttempts:             defaultMaxAttempts,
			CompletedRetentionHours: defaultCompletedRetentionHours,
		},
		LLM: LLM{
			BaseURL:                defaultLLMBaseURL,
			Model:                  defaultLLMModel,
			Referer:                defaultLLMReferer,
			Title:                  defaultLLMTitle,
			TimeoutSeconds:         defaultLLMTimeoutSeconds,
			RequestIntervalSeconds: defaultRequestIntervalSeconds,
			PromptCostPerMTok:      defaultPromptCostPerMTok,
			CompletionCostPerMTok:  defaultCompletionCostPerMTok,
		},
		Optimizer: Optimizer{
			Binary:           defaultOptimizerBinary,
			TimeoutSeconds:   defaultOptimizerTimeoutSeconds,
			ThumbWidth:       defaultThumbWidth,
			WebWidth:         defaultWebWidth,
			PlaceholderWidth: defaultPlaceholderWidth,
			WebQuality:       defaultWebQuality,
		},
		Renderer: Renderer{
			Binary:         defaultRendererBinary,
			PDFEngine:      defaultPDFEngine,
			TimeoutSeconds: defaultRendererTimeoutSeconds,
		},
		Gallery: Gallery{
			Branch:         defaultGalleryBranch,
			AuthorName:     defaultGalleryAuthorName,
			AuthorEmail:    defaultGalleryAuthorEmail,
			PushRetries:    defaultGalleryPushRetries,
			GitBinary:      defaultGitBinary,
			TimeoutSeconds: defaultGalleryTimeoutSeconds,
		},
		Daemon: Daemon{
			APIBind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
			Recovery:       true,
		},
	}
}
