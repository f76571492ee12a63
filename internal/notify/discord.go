package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DiscordSender delivers settlement notifications via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the notification to the webhook. Discord answers 204 No Content
// on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	return postJSON(ctx, d.client, "discord", d.webhookURL, map[string]any{
		"username": "predictduel",
		"content":  fmt.Sprintf("**%s**\n%s", title, message),
	})
}

// Name returns the sender identifier used in dispatch logs.
func (d *DiscordSender) Name() string {
	return "discord"
}
