package apprise

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fusionn-seer/internal/config"
)

// NotifyType is the Apprise message severity.
type NotifyType string

const (
	NotifyInfo    NotifyType = "info"
	NotifySuccess NotifyType = "success"
	NotifyWarning NotifyType = "warning"
	NotifyFailure NotifyType = "failure"
)

const (
	defaultKey = "apprise"
	defaultTag = "all"

	// FormatMarkdown lets Slack-style *bold* and bullets render.
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Message is one notification. Type defaults to info, Format to markdown.
type Message struct {
	Title  string
	Body   string
	Type   NotifyType
	Format string
}

type apiError struct {
	Error string `json:"error,omitempty"`
}

// Client posts to a stateful Apprise API config key.
type Client struct {
	http    *resty.Client
	key     string
	tag     string
	enabled bool
}

func NewClient(cfg config.AppriseConfig) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(1 * time.Second),
		key:     orDefault(cfg.Key, defaultKey),
		tag:     orDefault(cfg.Tag, defaultTag),
		enabled: cfg.Enabled,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Send delivers msg to every service behind the configured tag.
// A disabled or nil client drops the message.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.IsEnabled() {
		return nil
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("apprise: empty body")
	}

	form := map[string]string{
		"body":   msg.Body,
		"tag":    c.tag,
		"type":   orDefault(string(msg.Type), string(NotifyInfo)),
		"format": orDefault(msg.Format, FormatMarkdown),
	}
	if msg.Title != "" {
		form["title"] = msg.Title
	}

	var result, failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("key", c.key).
		SetFormData(form).
		SetResult(&result).
		SetError(&failure).
		Post("/notify/{key}")
	if err != nil {
		return fmt.Errorf("apprise: sending to %s: %w", c.key, err)
	}

	switch {
	case resp.IsError() && failure.Error != "":
		return fmt.Errorf("apprise: status %d: %s", resp.StatusCode(), failure.Error)
	case resp.IsError():
		return fmt.Errorf("apprise: status %d", resp.StatusCode())
	case result.Error != "":
		// some Apprise versions answer 200 with an error payload
		return fmt.Errorf("apprise: %s", result.Error)
	}
	return nil
}

// IsEnabled returns whether notifications are enabled
func (c *Client) IsEnabled() bool {
	return c != nil && c.enabled
}

// Tag returns the Apprise tag notifications are routed to.
func (c *Client) Tag() string {
	return c.tag
}
