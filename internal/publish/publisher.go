// Package publish posts messages to a hub's messages API.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/binarykitchen/noodlenotify/internal/config"
	"github.com/binarykitchen/noodlenotify/internal/models"
	"github.com/binarykitchen/noodlenotify/internal/signing"
)

const messagesPath = "/api/v1/messages"

type Publisher struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewPublisher(cfg config.PublishConfig) *Publisher {
	return &Publisher{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		secret:  cfg.Secret,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type publishRequest struct {
	Event string `json:"event,omitempty"`
	Data  string `json:"data"`
}

// Publish sends data to the hub. An empty event publishes a default message.
func (p *Publisher) Publish(ctx context.Context, data, event string) (*models.Message, error) {
	payload, err := json.Marshal(publishRequest{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+messagesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "noodlenotify/1.0")
	if p.secret != "" {
		signature, timestamp := signing.Sign(p.secret, payload)
		req.Header.Set(signing.TimestampHeader, fmt.Sprintf("%d", timestamp))
		req.Header.Set(signing.SignatureHeader, signature)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, fmt.Errorf("failed to read hub response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("hub answered %d after %s: %s", resp.StatusCode, time.Since(start).Round(time.Millisecond), apiErr.Error)
		}
		return nil, fmt.Errorf("hub answered %d after %s", resp.StatusCode, time.Since(start).Round(time.Millisecond))
	}

	var msg models.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode hub response: %w", err)
	}
	return &msg, nil
}
