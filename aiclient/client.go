package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/escalation"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"github.com/sirupsen/logrus"
)

const anthropicVersion = "2023-06-01"

// Client drafts collection emails through the Anthropic messages API.
// Implements escalation.EmailGenerator.
type Client struct {
	settings config.AISettings
	http     *http.Client
	logger   *logrus.Logger
}

func NewClient(settings config.AISettings, logger *logrus.Logger) (*Client, error) {
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, errors.New("ai api key is empty")
	}
	return &Client{
		settings: settings,
		http:     &http.Client{Timeout: settings.Timeout},
		logger:   logger,
	}, nil
}

type messagesRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system,omitempty"`
	Messages  []messageContent `json:"messages"`
}

type messageContent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, system string, user string) (string, error) {
	payload := messagesRequest{
		Model:     c.settings.Model,
		MaxTokens: c.settings.MaxTokens,
		System:    system,
		Messages:  []messageContent{{Role: "user", Content: user}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.settings.BaseURL, "/") + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.settings.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ai api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("ai api returned invalid json: %v", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("ai api error: %s", parsed.Error.Message)
	}
	if len(parsed.Content) == 0 {
		return "", errors.New("ai api returned empty content")
	}
	return parsed.Content[0].Text, nil
}

// GenerateEmails drafts one email per eligible contact using the active
// escalation templates as style guides.
func (c *Client) GenerateEmails(ctx context.Context, contacts []escalation.EligibleContact, templates map[string]*models.EmailTemplate) ([]escalation.GeneratedEmail, error) {
	if len(contacts) == 0 {
		return nil, nil
	}

	system := buildSystemPrompt(templates)
	user, err := buildUserMessage(contacts)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	emails, dropped := ParseGeneratedEmails(text)
	if c.logger != nil && dropped > 0 {
		c.logger.WithField("dropped", dropped).Warn("discarded malformed ai email drafts")
	}
	if len(emails) == 0 {
		return nil, errors.New("ai response contained no usable email drafts")
	}
	return emails, nil
}

// TestConnection probes the API with a minimal request.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.complete(ctx, "", "Reply with the single word: ok")
	return err
}

// Model reports the configured model name for status endpoints.
func (c *Client) Model() string {
	return c.settings.Model
}
