package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	notifications "inventory-pulse/internal/notifications/domain"
)

// WebhookChannel posts notifications to a Slack-compatible incoming
// webhook.
type WebhookChannel struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	Text        string              `json:"text"`
	Attachments []webhookAttachment `json:"attachments,omitempty"`
}

type webhookAttachment struct {
	Color  string         `json:"color,omitempty"`
	Title  string         `json:"title,omitempty"`
	Text   string         `json:"text,omitempty"`
	Fields []webhookField `json:"fields,omitempty"`
}

type webhookField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// WebhookOption configures the channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(c *WebhookChannel) {
		if client != nil {
			c.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) *WebhookChannel {
	c := &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts one notification.
func (c *WebhookChannel) Send(ctx context.Context, n notifications.Notification) error {
	if c == nil || c.url == "" {
		return errors.New("webhook channel: empty url")
	}
	body, err := json.Marshal(buildPayload(n))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook channel: status %d", resp.StatusCode)
	}
	return nil
}

func buildPayload(n notifications.Notification) webhookPayload {
	attachment := webhookAttachment{
		Color: severityColor(n.Severity),
		Title: fmt.Sprintf("[%s] %s", n.Severity, n.Type),
		Text:  n.Message,
	}
	if n.ItemID != "" {
		attachment.Fields = append(attachment.Fields, webhookField{Title: "Item", Value: n.ItemID, Short: true})
	}
	if loc, ok := n.Metadata["location_code"].(string); ok && loc != "" {
		attachment.Fields = append(attachment.Fields, webhookField{Title: "Location", Value: loc, Short: true})
	}
	if curr, ok := n.Metadata["current_qty"]; ok {
		attachment.Fields = append(attachment.Fields, webhookField{Title: "Current Qty", Value: fmt.Sprint(curr), Short: true})
	}
	return webhookPayload{
		Text:        n.Message,
		Attachments: []webhookAttachment{attachment},
	}
}

func severityColor(severity string) string {
	switch severity {
	case "CRITICAL":
		return "danger"
	case "WARNING":
		return "warning"
	default:
		return "good"
	}
}
