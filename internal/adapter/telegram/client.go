// Package telegram sends notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const DEFAULT_API_URL = "https://api.telegram.org"

var ErrSendFailed = errors.New("telegram sendMessage failed")

type Config struct {
	BotToken string `mapstructure:"bot_token"`
	ChatId   string `mapstructure:"chat_id"`
	ApiUrl   string `mapstructure:"api_url"`
}

func (c Config) Enabled() bool {
	return c.BotToken != "" && c.ChatId != ""
}

type Client struct {
	HTTP   *http.Client
	Config Config
}

func NewClient(cfg Config) *Client {
	if cfg.ApiUrl == "" {
		cfg.ApiUrl = DEFAULT_API_URL
	}
	return &Client{
		HTTP:   &http.Client{},
		Config: cfg,
	}
}

type sendMessageRequest struct {
	ChatId string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) SendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatId: c.Config.ChatId, Text: text})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.Config.ApiUrl, c.Config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to construct request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// the url carries the token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("%w: %v", ErrSendFailed, uerr.Err)
		}
		return fmt.Errorf("%w: request failed", ErrSendFailed)
	}
	defer resp.Body.Close()

	var r apiResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&r)
	if resp.StatusCode != http.StatusOK || !r.Ok {
		return fmt.Errorf("%w: status %d: %s", ErrSendFailed, resp.StatusCode, r.Description)
	}
	return nil
}
