package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AISettings configures the AI email-generation client. It is built once from
// env and passed into the client constructor explicitly; the escalation core
// never reads env itself.
type AISettings struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// SMTPSettings configures the outbound mail client.
type SMTPSettings struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

func LoadAISettings() AISettings {
	s := AISettings{
		APIKey:    strings.TrimSpace(os.Getenv("CLAUDE_API_KEY")),
		BaseURL:   strings.TrimSpace(os.Getenv("CLAUDE_API_BASE_URL")),
		Model:     strings.TrimSpace(os.Getenv("CLAUDE_MODEL")),
		MaxTokens: intFromEnv("CLAUDE_MAX_TOKENS", 4000),
		Timeout:   time.Duration(intFromEnv("CLAUDE_TIMEOUT_SECONDS", 60)) * time.Second,
	}
	if s.BaseURL == "" {
		s.BaseURL = "https://api.anthropic.com/v1"
	}
	if s.Model == "" {
		s.Model = "claude-3-5-sonnet-20241022"
	}
	return s
}

func LoadSMTPSettings() SMTPSettings {
	port := 587
	if v := strings.TrimSpace(os.Getenv("SMTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			port = n
		}
	}
	return SMTPSettings{
		Host:      strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Port:      port,
		Username:  strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
		Password:  strings.TrimSpace(os.Getenv("SMTP_PASSWORD")),
		FromEmail: strings.TrimSpace(os.Getenv("FROM_EMAIL")),
		FromName:  strings.TrimSpace(os.Getenv("FROM_NAME")),
	}
}
