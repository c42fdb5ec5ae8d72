// Package telegram relays contact-form leads to a Telegram chat through
// the Bot API.
//
// The bot is connected lazily on the first send: the Bot API client calls
// getMe when it is built, and a Telegram outage at startup must not keep
// the site from serving pages. A failed connect is retried on the next
// send.
package telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg/i18n"
)

// DefaultEndpoint is the Bot API URL pattern: token, then method.
const DefaultEndpoint = tgbotapi.APIEndpoint

// Config holds the bot credentials and destination.
type Config struct {
	Token    string
	ChatID   int64
	TopicID  int    // forum thread, 0 = main chat
	Endpoint string // empty = DefaultEndpoint
	Locale   string // language of message labels
}

// Notifier sends leads to one chat.
type Notifier struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewNotifier returns a notifier; nothing is sent until NotifyLead.
func NewNotifier(cfg Config, client *http.Client, log *zap.Logger) *Notifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if !i18n.IsSupported(cfg.Locale) {
		cfg.Locale = i18n.Russian
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{cfg: cfg, client: client, log: log}
}

// Name identifies the channel in logs and lead errors.
func (n *Notifier) Name() string { return "telegram" }

// NotifyLead posts the lead as an HTML message. propertyURL may be empty.
func (n *Notifier) NotifyLead(ctx context.Context, lead *models.Lead, propertyURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bot, err := n.connect()
	if err != nil {
		return err
	}

	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", n.cfg.ChatID)
	params.AddNonZero("message_thread_id", n.cfg.TopicID)
	params["text"] = FormatLead(lead, propertyURL, i18n.NewLocalizer(n.cfg.Locale))
	params["parse_mode"] = tgbotapi.ModeHTML
	params.AddBool("disable_web_page_preview", true)

	if _, err := bot.MakeRequest("sendMessage", params); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}

	n.log.Debug("lead relayed", zap.String("lead_id", lead.ID), zap.Int64("chat_id", n.cfg.ChatID))
	return nil
}

func (n *Notifier) connect() (*tgbotapi.BotAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bot != nil {
		return n.bot, nil
	}

	bot, err := tgbotapi.NewBotAPIWithClient(n.cfg.Token, n.cfg.Endpoint, n.client)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	n.log.Info("bot connected", zap.String("username", bot.Self.UserName))
	n.bot = bot
	return bot, nil
}

// FormatLead renders a lead as Telegram HTML. Every user-supplied value is
// escaped; Telegram rejects messages with stray tags.
func FormatLead(lead *models.Lead, propertyURL string, loc *i18n.Localizer) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(loc.T("lead.title")))
	line(&b, loc.T("lead.name"), lead.Name)
	line(&b, loc.T("lead.phone"), lead.Phone)

	if lead.PropertyID != nil {
		label := html.EscapeString(loc.T("lead.property"))
		if propertyURL != "" {
			fmt.Fprintf(&b, "<b>%s:</b> <a href=\"%s\">#%d</a>\n",
				label, html.EscapeString(propertyURL), *lead.PropertyID)
		} else {
			fmt.Fprintf(&b, "<b>%s:</b> #%d\n", label, *lead.PropertyID)
		}
	}

	line(&b, loc.T("lead.locale"), lead.Locale)
	line(&b, loc.T("lead.page"), lead.PageURL)

	if lead.Message != "" {
		fmt.Fprintf(&b, "\n<b>%s:</b>\n%s\n", html.EscapeString(loc.T("lead.message")), html.EscapeString(lead.Message))
	}

	return strings.TrimRight(b.String(), "\n")
}

func line(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<b>%s:</b> %s\n", html.EscapeString(label), html.EscapeString(value))
}
