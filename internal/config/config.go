// Package config assembles the service configuration from the environment.
package config

import (
	"time"

	"timelogger/internal/notify"
	"timelogger/pkg/config"
)

// Config is the fully resolved service configuration.
type Config struct {
	Port string

	// Speech-to-text
	OpenAIAPIKey string
	WhisperModel string

	// Extraction
	LLMModel  string
	LLMAPIURL string

	// Storage
	GoogleCredentialsFile string
	SpreadsheetID         string
	SheetName             string

	// Notifications
	Notify          notify.Config
	SMTPHost        string
	SMTPPort        int
	SenderEmail     string
	SenderPassword  string
	RecipientEmails []string
	ChatWebhookURL  string
	TemplateDir     string
	SendTimeout     time.Duration
}

// Load reads the service configuration from the environment, applying
// defaults where values are absent.
func Load() Config {
	return Config{
		Port: config.GetEnv("PORT", "8080"),

		OpenAIAPIKey: config.GetEnv("OPENAI_API_KEY", ""),
		WhisperModel: config.GetEnv("WHISPER_MODEL", "whisper-1"),

		LLMModel:  config.GetEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIURL: config.GetEnv("LLM_API_URL", ""),

		GoogleCredentialsFile: config.GetEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		SpreadsheetID:         config.GetEnv("GOOGLE_SPREADSHEET_ID", ""),
		SheetName:             config.GetEnv("SHEET_NAME", "MeetingRecords"),

		Notify: notify.Config{
			EmailEnabled:    config.GetEnvBool("ENABLE_EMAIL_NOTIFICATIONS", false),
			ChatEnabled:     config.GetEnvBool("ENABLE_CHAT_NOTIFICATIONS", false),
			NotifyByDefault: config.GetEnvBool("NOTIFICATIONS_DEFAULT", true),
		},
		SMTPHost:        config.GetEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:        config.GetEnvInt("SMTP_PORT", 587),
		SenderEmail:     config.GetEnv("SENDER_EMAIL", ""),
		SenderPassword:  config.GetEnv("SENDER_PASSWORD", ""),
		RecipientEmails: config.GetEnvList("RECIPIENT_EMAILS"),
		ChatWebhookURL:  config.GetEnv("CHAT_WEBHOOK_URL", ""),
		TemplateDir:     config.GetEnv("TEMPLATE_DIR", "templates"),
		SendTimeout:     config.GetEnvDuration("NOTIFY_SEND_TIMEOUT", 30*time.Second),
	}
}

// EmailConfigured reports whether SMTP sending can be attempted at all.
func (c Config) EmailConfigured() bool {
	return c.SMTPHost != "" && c.SenderEmail != "" && c.SenderPassword != ""
}
