package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rack-io/rack/internal/connector"
)

// Config holds Telegram pager configuration.
type Config struct {
	Token    string  // Bot token from @BotFather
	ChatIDs  []int64 // Supervisor chats that receive pages
	Endpoint string  // optional API endpoint format, defaults to tgbotapi.APIEndpoint
}

// Pager sends escalation notices to supervisor chats via a Telegram bot.
type Pager struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	logger  *slog.Logger
}

// New creates a Telegram pager. It authorizes the bot token immediately.
func New(cfg Config, logger *slog.Logger) (*Pager, error) {
	if len(cfg.ChatIDs) == 0 {
		return nil, fmt.Errorf("telegram: at least one chat id is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Pager{
		bot:     bot,
		chatIDs: cfg.ChatIDs,
		logger:  logger,
	}, nil
}

func (p *Pager) Name() string { return "telegram" }

// Page sends the notice to every configured chat. A failed chat does not stop
// delivery to the others.
func (p *Pager) Page(ctx context.Context, pg connector.Page) error {
	text := Format(pg)
	var failed []string
	for _, chatID := range p.chatIDs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("telegram: page: %w", err)
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := p.bot.Send(msg); err != nil {
			p.logger.Warn("telegram page failed", "chat_id", chatID, "error", err)
			failed = append(failed, fmt.Sprintf("%d: %v", chatID, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("telegram: page failed for %s", strings.Join(failed, "; "))
	}
	return nil
}

// Format renders a page as Telegram HTML.
func Format(pg connector.Page) string {
	var b strings.Builder
	b.WriteString("<b>" + html.EscapeString(pg.Title()) + "</b>")
	for _, line := range pg.Lines() {
		b.WriteString("\n" + html.EscapeString(line))
	}
	return b.String()
}
