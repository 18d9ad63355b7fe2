package main

import (
	"context"
	"crypto-alert-bot/config"
	"crypto-alert-bot/internal/alert"
	"crypto-alert-bot/internal/database"
	"crypto-alert-bot/internal/metrics"
	"crypto-alert-bot/internal/price"
	"crypto-alert-bot/internal/telegram"
	"crypto-alert-bot/lib/translation"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	metricsSaveInterval = 5 * time.Minute
	quoteCacheTTL       = time.Minute
)

var rootCmd = &cobra.Command{
	Use:   "crypto-alert-bot",
	Short: "Telegram bot that notifies users when a coin reaches their target price",
	Long: `crypto-alert-bot answers /price, /alert, /myalerts and /delete commands on
Telegram and periodically checks every active alert against coinpaprika
prices, notifying the owner once the target price is reached.`,
	SilenceUsage: true,
	RunE:         runBot,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single alert check pass and exit",
	RunE:  runCheck,
}

func init() {
	config.InitConfig(rootCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the components shared by the bot and the one-shot check
type app struct {
	cfg       *config.Config
	db        *database.DB
	metrics   *metrics.Metrics
	bot       *telegram.Bot
	lookup    *price.Lookup
	evaluator *alert.Evaluator
	service   *alert.Service
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "configuration error")
	}
	setupLogging(cfg.Debug)
	translation.Configure(cfg.LocalesPath, cfg.Lang)
	log.Debugf("Replying in language %q", translation.GetLanguage())

	db, err := database.InitDB(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if err := m.Load(ctx, db); err != nil {
		log.WithError(err).Warn("Failed to load metrics from database")
	}

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          cfg.TelegramBotToken,
		Debug:          cfg.Debug,
		UpdatesTimeout: 60,
		WebhookURL:     cfg.WebhookURL,
	}, m)
	if err != nil {
		db.Close()
		return nil, err
	}

	client := price.NewClient(cfg.APIProKey)
	lookup := price.NewLookup(client.Tickers.List, quoteCacheTTL)
	evaluator := alert.NewEvaluator(db, lookup, bot, m)

	return &app{
		cfg:       cfg,
		db:        db,
		metrics:   m,
		bot:       bot,
		lookup:    lookup,
		evaluator: evaluator,
		service:   alert.NewService(db, evaluator),
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.metrics.Save(ctx, a.db); err != nil {
		log.WithError(err).Error("Failed to save metrics")
	}
	if err := a.db.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.bot.WithCommands(a.service, a.lookup)

	updates, err := a.bot.GetUpdatesChannel()
	if err != nil {
		return errors.Wrap(err, "failed to get updates channel")
	}
	defer a.bot.StopReceivingUpdates()

	go a.bot.HandleUpdates(ctx, updates)
	go alert.NewScheduler(a.evaluator, a.cfg.CheckInterval, a.cfg.RetryMin).Run(ctx)
	go a.saveMetricsPeriodically(ctx)

	server := newMetricsAndHealthServer(a.cfg.MetricsPort, a.db)
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Launching metrics and health endpoint on :%d", a.cfg.MetricsPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info("Bot started")

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-serverErr:
		return errors.Wrap(err, "metrics and health server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	notified, err := a.service.RunCheckPass(ctx)
	if err != nil {
		return errors.Wrap(err, "alert check failed")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "notified %d alert(s)\n", notified)
	return nil
}

func setupLogging(debug bool) {
	log.SetLevel(log.InfoLevel)
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting telegram bot...")
}

func (a *app) saveMetricsPeriodically(ctx context.Context) {
	ticker := time.NewTicker(metricsSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.metrics.Save(ctx, a.db); err != nil {
				log.WithError(err).Error("Failed to save metrics")
			}
		}
	}
}

// newMetricsAndHealthServer serves /metrics, /health and, in webhook mode,
// the telegram updates registered on http.DefaultServeMux
func newMetricsAndHealthServer(port int, db *database.DB) *http.Server {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			log.WithError(err).Error("health check failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
