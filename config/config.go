package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

var once sync.Once

// Config runtime settings of the bot
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	WebhookURL       string
	MetricsPort      int
	CheckInterval    time.Duration
	RetryMin         time.Duration
	APIProKey        string
	Debug            bool
	Lang             string
	LocalesPath      string
}

// InitConfig registers the command line flags and binds them, together with
// the environment, to viper. A .env file in the working directory is loaded
// when present; real environment variables take precedence over it.
func InitConfig(rootCmd *cobra.Command) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Warnf("Could not load .env file: %v", err)
		}
	})

	flags := rootCmd.PersistentFlags()
	flags.String("telegram-bot-token", "", "Telegram bot API token")
	flags.String("database-path", "alerts.db", "Path of the SQLite database file")
	flags.String("webhook-url", "", "Public webhook URL, long polling is used when empty")
	flags.Int("metrics-port", 9090, "Port of the metrics and health endpoint")
	flags.String("check-interval", "1m", "Time between alert checks (e.g. 30s, 5m, 1d)")
	flags.String("retry-min", "5s", "First retry delay after a failed alert check")
	flags.String("api-pro-key", "", "Coinpaprika API Pro key")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("lang", "en", "Language of the bot replies")
	flags.String("locales-path", "locales", "Directory holding the translation files")

	for _, name := range []string{
		"telegram-bot-token", "database-path", "webhook-url", "metrics-port", "check-interval",
		"retry-min", "api-pro-key", "debug", "lang", "locales-path",
	} {
		viper.BindPFlag(key(name), flags.Lookup(name))
	}

	viper.AutomaticEnv()

	viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("database_path", "DATABASE_PATH")
	viper.BindEnv("webhook_url", "WEBHOOK_URL")
	viper.BindEnv("metrics_port", "METRICS_PORT")
	viper.BindEnv("check_interval", "CHECK_INTERVAL")
	viper.BindEnv("retry_min", "RETRY_MIN")
	viper.BindEnv("api_pro_key", "API_PRO_KEY")
	viper.BindEnv("debug", "DEBUG")
	viper.BindEnv("lang", "LANG")
	viper.BindEnv("locales_path", "LOCALES_PATH")

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("database_path", "alerts.db")
	viper.SetDefault("metrics_port", 9090)
	viper.SetDefault("check_interval", "1m")
	viper.SetDefault("retry_min", "5s")
	viper.SetDefault("debug", false)
	viper.SetDefault("lang", "en")
	viper.SetDefault("locales_path", "locales")
}

func key(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// Load reads and validates the configuration
func Load() (*Config, error) {
	token := strings.TrimSpace(viper.GetString("telegram_bot_token"))
	if token == "" {
		return nil, errors.New("no telegram bot token provided. Use --telegram-bot-token flag or TELEGRAM_BOT_TOKEN environment variable")
	}

	interval, err := str2duration.ParseDuration(viper.GetString("check_interval"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid check interval %q", viper.GetString("check_interval"))
	}
	if interval <= 0 {
		return nil, errors.Errorf("check interval must be positive, got %s", interval)
	}

	retryMin, err := str2duration.ParseDuration(viper.GetString("retry_min"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid retry delay %q", viper.GetString("retry_min"))
	}
	if retryMin <= 0 || retryMin > interval {
		retryMin = interval
	}

	port := viper.GetInt("metrics_port")
	if port <= 0 || port > 65535 {
		return nil, errors.Errorf("invalid metrics port %d", port)
	}

	dbPath := viper.GetString("database_path")
	if dbPath == "" {
		dbPath = "alerts.db"
	}

	return &Config{
		TelegramBotToken: token,
		DatabasePath:     dbPath,
		WebhookURL:       strings.TrimSpace(viper.GetString("webhook_url")),
		MetricsPort:      port,
		CheckInterval:    interval,
		RetryMin:         retryMin,
		APIProKey:        viper.GetString("api_pro_key"),
		Debug:            viper.GetBool("debug"),
		Lang:             language(viper.GetString("lang")),
		LocalesPath:      viper.GetString("locales_path"),
	}, nil
}

// language turns a POSIX locale such as "en_US.UTF-8" into "en_us"
func language(lang string) string {
	lang, _, _ = strings.Cut(lang, ".")
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" || lang == "c" || lang == "posix" {
		return "en"
	}
	return lang
}
