package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farmarket/farmarket-backend/pkg/config"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("email api key is required")
	errFromRequired   = errors.New("email default sender is required")
)

// Message is one outbound transactional email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender is the narrow surface services depend on.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client delivers transactional mail through the SendGrid REST API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	from       string
	logger     *logger.Logger
}

// NewClient validates the configuration and returns a mail client.
func NewClient(cfg config.EmailConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}

	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
		from:       from,
		logger:     logg,
	}, nil
}

type sendgridAddress struct {
	Email string `json:"email"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridRequest struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

// Send delivers one message. A 2xx from the API means accepted for delivery.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return errors.New("email client not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return errors.New("subject is required")
	}

	content := []sendgridContent{}
	if msg.TextBody != "" {
		content = append(content, sendgridContent{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		content = append(content, sendgridContent{Type: "text/html", Value: msg.HTMLBody})
	}
	if len(content) == 0 {
		return errors.New("message body is required")
	}

	body := sendgridRequest{
		Personalizations: []sendgridPersonalization{{To: []sendgridAddress{{Email: msg.To}}}},
		From:             sendgridAddress{Email: c.from},
		Subject:          msg.Subject,
		Content:          content,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn(ctx, "email: closing response body failed")
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("mail api returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if c.logger != nil {
		c.logger.Info(ctx, fmt.Sprintf("email queued to %s", msg.To))
	}
	return nil
}
