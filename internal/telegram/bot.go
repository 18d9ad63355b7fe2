package telegram

import (
	"context"
	"crypto-alert-bot/internal/commands"
	"crypto-alert-bot/internal/metrics"
	"crypto-alert-bot/lib/helpers"
	"crypto-alert-bot/lib/translation"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/davecgh/go-spew/spew"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewBot creates new telegram bot. Commands are answered once WithCommands
// has been called; until then the bot only sends notifications.
func NewBot(c BotConfig, m *metrics.Metrics) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	b := newBot(bot, c, m)
	b.Bot = bot
	return b, nil
}

func newBot(api sender, c BotConfig, m *metrics.Metrics) *Bot {
	return &Bot{
		Config:  c,
		api:     api,
		metrics: m,
		now:     time.Now,
	}
}

// WithCommands sets the services behind the chat commands
func (b *Bot) WithCommands(alerts commands.AlertService, quoter commands.Quoter) *Bot {
	b.alerts = alerts
	b.quoter = quoter
	return b
}

// GetUpdatesChannel starts receiving updates, through the webhook when one is
// configured and by long polling otherwise. Webhook updates are served on
// http.DefaultServeMux.
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	if b.Config.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(b.Config.WebhookURL)
		if err != nil {
			return nil, errors.Wrap(err, "invalid webhook url")
		}
		if _, err := b.api.Request(wh); err != nil {
			return nil, errors.Wrap(err, "could not set webhook")
		}

		path, err := webhookPath(b.Config.WebhookURL)
		if err != nil {
			return nil, err
		}
		log.Infof("Listening for webhook updates on %s", path)
		return b.Bot.ListenForWebhook(path), nil
	}

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.WithError(err).Warn("could not remove webhook before polling")
	}

	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

func webhookPath(webhookURL string) (string, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid webhook url")
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}

// StopReceivingUpdates stops long polling
func (b *Bot) StopReceivingUpdates() {
	if b.Bot != nil && b.Config.WebhookURL == "" {
		b.Bot.StopReceivingUpdates()
	}
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := b.api.Send(msg)
	return errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
}

// Notify delivers an alert notification to a chat
func (b *Bot) Notify(ctx context.Context, destination int64, text string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "notification cancelled")
	}
	return b.SendMessage(Message{ChatID: destination, Text: text})
}

// HandleUpdates answers commands until ctx is done or updates is closed
func (b *Bot) HandleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		if log.IsLevelEnabled(log.DebugLevel) {
			log.Debug("Received non-message or non-command: ", spew.Sdump(update))
		}
		return
	}

	chatID := update.Message.Chat.ID
	b.metrics.ObserveMessage(chatID, update.Message.Chat.Title)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, debug.Stack())
		}
	}()

	text := b.HandleUpdate(ctx, update)
	if text == "" {
		return
	}

	err := b.SendMessage(Message{
		ChatID:    chatID,
		Text:      text,
		MessageID: update.Message.MessageID,
	})
	if err != nil {
		log.Errorf("Failed to send message: %v", err)
		return
	}
	b.metrics.CommandsProcessed.Inc()
}

// HandleUpdate processes a command and returns the MarkdownV2 reply
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) string {
	m := u.Message
	log.Debugf("received command: %s", m.Command())

	owner := m.Chat.ID
	firstName := ""
	if m.From != nil {
		owner = m.From.ID
		firstName = m.From.FirstName
	}

	switch m.Command() {
	case "start":
		return translation.Translate("welcome_message", helpers.EscapeMarkdownV2(firstName))
	case "help":
		return translation.Translate("help_message")
	case "price", "p":
		text, err := commands.CommandPrice(ctx, b.quoter, m.CommandArguments())
		if err != nil {
			log.Error(err)
			symbol, _ := commands.ParseArguments(m.CommandArguments())
			return translation.Translate("coin_not_found", helpers.EscapeMarkdownV2(symbol))
		}
		return text
	case "alert":
		return commands.CommandAlert(ctx, b.alerts, owner, m.Chat.ID, m.CommandArguments())
	case "myalerts":
		return commands.CommandMyAlerts(ctx, b.alerts, owner, b.now())
	case "delete":
		return commands.CommandDelete(ctx, b.alerts, owner, m.CommandArguments())
	}

	return translation.Translate("unknown_command")
}
