package notify

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

	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

const defaultSlackPostMessageURL = "https://slack.com/api/chat.postMessage"

// ChatPoster posts a message to a team channel.
type ChatPoster interface {
	Post(ctx context.Context, channel, text string) error
}

// SlackPoster posts through chat.postMessage with a bot token.
type SlackPoster struct {
	token          string
	defaultChannel string
	apiURL         string
	client         *http.Client
	logger         *logging.Logger
}

// NewSlackPoster returns nil without a bot token.
func NewSlackPoster(token, defaultChannel string, logger *logging.Logger) *SlackPoster {
	if token == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlackPoster{
		token:          token,
		defaultChannel: defaultChannel,
		apiURL:         defaultSlackPostMessageURL,
		client:         &http.Client{Timeout: 10 * time.Second},
		logger:         logger,
	}
}

// Post sends text to channel, or to the default channel when channel is blank.
func (p *SlackPoster) Post(ctx context.Context, channel, text string) error {
	if strings.TrimSpace(channel) == "" {
		channel = p.defaultChannel
	}
	if channel == "" {
		return errors.New("notify: slack channel required")
	}

	body, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": text},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("notify: read slack response: %w", err)
	}
	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return fmt.Errorf("notify: parse slack response (status %d): %w", resp.StatusCode, err)
	}
	if !slackResp.OK {
		return fmt.Errorf("notify: slack error: %s", slackResp.Error)
	}

	p.logger.Debug("posted to slack", "channel", channel, "ts", slackResp.TS)
	return nil
}

var _ ChatPoster = (*SlackPoster)(nil)
