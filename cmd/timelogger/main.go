package main

import (
	"strconv"

	appconfig "timelogger/internal/config"
	"timelogger/internal/extraction"
	"timelogger/internal/handlers"
	"timelogger/internal/notify"
	"timelogger/internal/speech"
	"timelogger/internal/storage"
	"timelogger/pkg/config"
	"timelogger/pkg/email"
	"timelogger/pkg/llm"
	"timelogger/pkg/logging"
	"timelogger/pkg/monitoring"
	"timelogger/pkg/server"
	"timelogger/pkg/version"
)

func main() {
	logger := logging.NewLoggerWithService("timelogger")
	config.LoadEnv(logger)

	cfg := appconfig.Load()
	versionInfo := version.GetInfo()

	logger.WithFields(logging.Fields{
		"version": versionInfo.Version,
		"commit":  versionInfo.GitCommit,
	}).Info("Starting timelogger service")

	transcriber, err := speech.NewTranscriber(speech.Config{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.WhisperModel,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize transcriber")
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider: "openai",
		Model:    cfg.LLMModel,
		APIKey:   cfg.OpenAIAPIKey,
		APIURL:   cfg.LLMAPIURL,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize LLM provider")
	}
	extractor := extraction.NewExtractor(provider, logger)

	sheets, err := storage.NewSheetsClient(storage.Config{
		CredentialsFile: cfg.GoogleCredentialsFile,
		SpreadsheetID:   cfg.SpreadsheetID,
		SheetName:       cfg.SheetName,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Google Sheets storage")
	}

	notifier := buildNotifier(cfg, logger)

	h := handlers.New(handlers.Config{
		Transcriber: transcriber,
		Extractor:   extractor,
		Storage:     sheets,
		Notifier:    notifier,
		SendTimeout: cfg.SendTimeout,
		Logger:      logger,
	})

	healthChecker := monitoring.NewHealthChecker("timelogger", versionInfo.Version)
	healthChecker.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"OPENAI_API_KEY":        cfg.OpenAIAPIKey,
		"GOOGLE_SPREADSHEET_ID": cfg.SpreadsheetID,
	}))

	metricsCollector := monitoring.NewMetricsCollector("timelogger", versionInfo.Version, versionInfo.GitCommit)

	router := server.SetupRouter(logger, "timelogger")
	router.Use(metricsCollector.MetricsMiddleware())
	router.GET("/health", healthChecker.Handler())
	router.GET("/metrics", metricsCollector.Handler())
	h.RegisterRoutes(router)

	srvConfig := server.DefaultConfig("timelogger", cfg.Port)
	if err := server.Start(srvConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}

// buildNotifier wires the notification channels from configuration. Channels
// stay registered even when their transport settings are incomplete so that
// dispatches surface a skipped result instead of silently dropping.
func buildNotifier(cfg appconfig.Config, logger logging.Logger) *notify.Manager {
	resolver := notify.NewResolver(notify.NewFileLoader(cfg.TemplateDir), logger)

	var mailer notify.Mailer
	if cfg.EmailConfigured() {
		mailer = email.NewSender(email.Config{
			Host:     cfg.SMTPHost,
			Port:     strconv.Itoa(cfg.SMTPPort),
			User:     cfg.SenderEmail,
			Password: cfg.SenderPassword,
			From:     cfg.SenderEmail,
			FromName: "TimeLogger",
		})
	}

	emailSender := notify.NewEmailSender(notify.EmailSenderConfig{
		Mailer:       mailer,
		Recipients:   cfg.RecipientEmails,
		TemplateName: notify.TemplateMeetingNotification,
		Resolver:     resolver,
		Logger:       logger,
	})
	chatSender := notify.NewChatSender(cfg.ChatWebhookURL, logger)

	return notify.NewManager(cfg.Notify, logger, emailSender, chatSender)
}
