package telegram

import (
	"crypto-alert-bot/internal/commands"
	"crypto-alert-bot/internal/metrics"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
	// WebhookURL switches update delivery from long polling to a webhook
	WebhookURL string
}

// sender is the subset of *tgbotapi.BotAPI used to talk to telegram
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot telegram interaction client
type Bot struct {
	Bot     *tgbotapi.BotAPI
	Config  BotConfig
	api     sender
	alerts  commands.AlertService
	quoter  commands.Quoter
	metrics *metrics.Metrics
	now     func() time.Time
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}
