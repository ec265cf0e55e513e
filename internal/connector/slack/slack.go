package slackconn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/rack-io/rack/internal/connector"
)

// Config holds Slack pager configuration.
type Config struct {
	BotToken string // xoxb-... Bot User OAuth Token
	Channel  string // channel ID supervisors watch
	APIURL   string // optional API base URL override (must end in "/")
}

// Pager posts escalation notices to a Slack channel.
type Pager struct {
	api     *slack.Client
	channel string
	logger  *slog.Logger
}

// New creates a Slack pager.
func New(cfg Config, logger *slog.Logger) (*Pager, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}

	return &Pager{
		api:     slack.New(cfg.BotToken, opts...),
		channel: cfg.Channel,
		logger:  logger,
	}, nil
}

func (p *Pager) Name() string { return "slack" }

// Page posts the notice as mrkdwn.
func (p *Pager) Page(ctx context.Context, pg connector.Page) error {
	_, ts, err := p.api.PostMessageContext(ctx, p.channel,
		slack.MsgOptionText(Format(pg), false),
	)
	if err != nil {
		return fmt.Errorf("slack: post page: %w", err)
	}
	p.logger.Info("supervisor paged", "channel", p.channel, "ts", ts, "reminder", pg.Reminder)
	return nil
}

// Format renders a page in Slack mrkdwn: bold title, quoted body.
func Format(pg connector.Page) string {
	var b strings.Builder
	b.WriteString(":rotating_light: *" + escape(pg.Title()) + "*")
	for _, line := range pg.Lines() {
		b.WriteString("\n> " + escape(line))
	}
	return b.String()
}

// escape applies Slack's control-character escaping.
func escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
