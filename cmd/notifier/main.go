package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"terratrack_notifier/internal/app"
	"terratrack_notifier/internal/domain/channel"
	"terratrack_notifier/internal/infra/config"
	"terratrack_notifier/internal/infra/crops"
	idb "terratrack_notifier/internal/infra/database"
	"terratrack_notifier/internal/infra/httpapi"
	"terratrack_notifier/internal/infra/ledger"
	"terratrack_notifier/internal/infra/logger"
	"terratrack_notifier/internal/infra/ratelimit"
	"terratrack_notifier/internal/infra/scheduler"
	snsinfra "terratrack_notifier/internal/infra/sns"
	"terratrack_notifier/internal/infra/telegram"
	"terratrack_notifier/internal/observability/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	os.Exit(run())
}

func run() int {
	once := flag.Bool("once", false, "run a single digest dispatch, print the summary as JSON and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		return 1
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	if err := cfg.Validate(); err != nil {
		mainLogger.WithError(err).Error("Invalid configuration")
		return 1
	}
	mainLogger.WithFields(logrus.Fields{
		"environment":    cfg.Environment,
		"channel_driver": cfg.ChannelDriver,
		"days_ahead":     cfg.DaysAhead,
		"batch_size":     cfg.BatchSize,
		"timezone":       cfg.DigestLocation.String(),
	}).Info("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Error("Could not connect to database")
		return 1
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	userRepo := idb.NewPostgresUserRepository(db)
	plantingRepo := idb.NewPostgresPlantingRepository(db)

	cropStore, err := crops.LoadFile(cfg.CropTemplatesPath)
	if err != nil {
		mainLogger.WithError(err).Error("Could not load crop templates")
		return 1
	}
	mainLogger.WithField("crops", cropStore.Len()).Info("Crop templates loaded")
	calc := app.NewPlanCalculator(cropStore)

	// A bot is needed for the telegram channel and for the admin commands.
	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		bot, err = newBot(cfg.TelegramToken)
		if err != nil {
			mainLogger.WithError(err).Error("Could not create Telegram bot")
			return 1
		}
	}

	var publisher channel.Publisher
	var subscriber channel.Subscriber
	switch cfg.ChannelDriver {
	case config.ChannelDriverTelegram:
		publisher = telegram.NewTelebotAdapter(bot)
	default:
		snsPublisher, err := snsinfra.NewPublisher(ctx, snsinfra.Config{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpointURL})
		if err != nil {
			mainLogger.WithError(err).Error("Could not create SNS client")
			return 1
		}
		publisher = snsPublisher
		subscriber = snsPublisher
	}
	publisher = ratelimit.NewPublisher(publisher, cfg.PublishRatePerSecond)

	dispatchOptions := []app.DispatchOption{app.WithClock(app.ClockIn(cfg.DigestLocation))}
	pingers := map[string]httpapi.Pinger{"postgres": db}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		dispatchOptions = append(dispatchOptions, app.WithSentLedger(ledger.NewRedisLedger(redisClient, cfg.SentLedgerTTL)))
		pingers["redis"] = httpapi.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		mainLogger.WithField("addr", cfg.RedisAddr).Info("Sent ledger enabled")
	}

	dispatchMetrics, err := metrics.NewDispatchMetrics()
	if err != nil {
		mainLogger.WithError(err).Warn("Dispatch metrics disabled")
	} else {
		dispatchOptions = append(dispatchOptions, app.WithMetrics(dispatchMetrics))
	}

	dispatcher := app.NewDispatchService(userRepo, plantingRepo, calc, publisher, app.DispatchOptions{
		DaysAhead:     cfg.DaysAhead,
		BatchSize:     cfg.BatchSize,
		BatchPause:    cfg.BatchPause,
		ChannelTarget: cfg.ChannelTarget,
		ProductName:   cfg.ProductName,
	}, logger.Component("dispatch"), dispatchOptions...)

	if *once {
		return runOnce(ctx, dispatcher, cfg.RunTimeout, mainLogger)
	}

	plantingService := app.NewPlantingService(plantingRepo, userRepo, calc, subscriber,
		cfg.ChannelTarget, cfg.PersistRegeneratedPlans, logger.Component("plantings"))

	digestScheduler := scheduler.NewDigestScheduler(dispatcher, logger.Component("scheduler"),
		cfg.CronSpecDailyDigest, cfg.DigestLocation, cfg.RunTimeout)
	if err := digestScheduler.Start(ctx); err != nil {
		mainLogger.WithError(err).Error("Could not schedule daily digest")
		return 1
	}

	if bot != nil {
		botLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, cfg.ProductName, botLogger)
		telegram.RegisterAdminHandlers(ctx, bot,
			telegram.NewAdminHandlers(dispatcher, cfg.AdminTelegramID, cfg.RunTimeout, cfg.DigestLocation, botLogger))
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	if cfg.Environment == "production" || cfg.Environment == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.HTTPAdminToken == "" {
		mainLogger.Warn("HTTP_ADMIN_TOKEN is not set, POST /dispatch is open to anyone who can reach the HTTP port")
	}
	handler := httpapi.NewHandler(dispatcher, plantingService, pingers, httpapi.Options{
		RunTimeout: cfg.RunTimeout,
		AdminToken: cfg.HTTPAdminToken,
		Location:   cfg.DigestLocation,
	}, logger.Component("http"))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		mainLogger.WithField("port", cfg.HTTPPort).Info("Starting HTTP server")
		serverErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		mainLogger.WithField("signal", sig.String()).Info("Shutting down application...")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Error("HTTP server exited with error")
			exitCode = 1
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("Failed to shut down HTTP server")
		exitCode = 1
	}
	if bot != nil {
		bot.Stop()
	}
	<-digestScheduler.Stop().Done()

	mainLogger.Info("Application shut down gracefully.")
	return exitCode
}

func runOnce(ctx context.Context, dispatcher app.Dispatcher, timeout time.Duration, log *logrus.Entry) int {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	summary, err := dispatcher.Run(runCtx)
	if summary != nil {
		out, _ := json.Marshal(summary)
		fmt.Println(string(out))
	}
	if err != nil {
		log.WithError(err).Error("Digest dispatch failed")
		return 1
	}
	return 0
}

func newBot(token string) (*telebot.Bot, error) {
	botLogger := logger.Component("telebot")
	return telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Telegram handler error")
		},
	})
}
