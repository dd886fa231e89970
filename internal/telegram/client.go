// Package telegram delivers text messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wordforge/challenge-service/internal/config"
)

// Client sends messages to players over Telegram. Calls use a short
// timeout and failures are reported per recipient; the caller decides
// whether a failed send matters.
type Client struct {
	token   string
	apiBase string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Telegram client from configuration
func NewClient(cfg *config.TelegramConfig, logger *slog.Logger) *Client {
	if cfg.BotToken == "" {
		logger.Warn("telegram bot token not configured, sends will be skipped")
	}
	return &Client{
		token:   cfg.BotToken,
		apiBase: cfg.APIBase,
		http:    &http.Client{Timeout: cfg.SendTimeout},
		logger:  logger,
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// SendText sends an HTML-formatted message to a chat. A missing bot token
// downgrades sends to no-ops so the rest of the pipeline keeps working in
// development setups.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if c.token == "" {
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	var result sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram api error (chat_id=%d): %s", chatID, result.Description)
	}
	return nil
}
