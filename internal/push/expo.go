package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"smokewatch-backend/config"
)

// Gateway delivers a push message to a set of opaque tokens. Delivery is
// best effort; the core never consumes an acknowledgement.
type Gateway interface {
	Deliver(ctx context.Context, tokens []string, title, body, sound, channel string)
}

// expoMessage is one push submission for a single token.
type expoMessage struct {
	To        string `json:"to"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Sound     string `json:"sound"`
	Priority  string `json:"priority"`
	ChannelID string `json:"channelId"`
}

// ExpoGateway submits push messages to the Expo push HTTP endpoint.
type ExpoGateway struct {
	cfg    *config.PushConfig
	client *http.Client
}

// NewExpoGateway creates a push gateway over the given pooled HTTP client.
func NewExpoGateway(cfg *config.PushConfig, httpClient *http.Client) *ExpoGateway {
	return &ExpoGateway{cfg: cfg, client: httpClient}
}

// Deliver submits one message per token. Per-token failures are logged and
// do not stop the fan-out.
func (g *ExpoGateway) Deliver(ctx context.Context, tokens []string, title, body, sound, channel string) {
	for _, token := range tokens {
		if err := g.send(ctx, token, title, body, sound, channel); err != nil {
			log.Printf("Error sending notification to %s: %v", token, err)
		}
	}
}

func (g *ExpoGateway) send(ctx context.Context, token, title, body, sound, channel string) error {
	msg := expoMessage{
		To:        token,
		Title:     title,
		Body:      body,
		Sound:     sound,
		Priority:  "high",
		ChannelID: channel,
	}
	jsonBody, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
