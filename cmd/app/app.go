// Package main is the entry point for the currency rate bot.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ratebot/internal/bot"
	"ratebot/internal/chart"
	"ratebot/internal/config"
	"ratebot/internal/events"
	"ratebot/internal/provider"
	"ratebot/internal/repository"
	"ratebot/internal/scheduler"
	"ratebot/internal/service"
	"ratebot/internal/worker"
)

// App holds all application dependencies and manages their lifecycle.
type App struct {
	cfg         *config.Config
	logger      *zap.SugaredLogger
	db          *sql.DB
	rdb         *redis.Client
	asynqClient *asynq.Client
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
	monitor     *asynqmon.HTTPHandler
	publisher   *events.KafkaPublisher
	poller      *bot.Poller
	scheduler   *scheduler.Scheduler
	httpServer  *http.Server

	pollerDone chan struct{}
}

// NewApp initializes all dependencies and returns a ready-to-run App.
func NewApp(cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	app := &App{
		cfg:        cfg,
		logger:     logger,
		pollerDone: make(chan struct{}),
	}

	if err := app.initStorage(); err != nil {
		_ = app.close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}

	return app, nil
}

// close releases the database, queue and event connections.
func (app *App) close() error {
	var errs []error
	if app.monitor != nil {
		if err := app.monitor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynqmon close: %w", err))
		}
	}
	if app.asynqClient != nil {
		if err := app.asynqClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynq client close: %w", err))
		}
	}
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka writer close: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (app *App) initStorage() error {
	db, err := repository.Open(&app.cfg.Database)
	if err != nil {
		return fmt.Errorf("open %s database: %w", app.cfg.Database.Driver, err)
	}
	app.db = db

	if err := repository.RunMigrations(&app.cfg.Database, app.logger); err != nil {
		return fmt.Errorf("run DB migrations: %w", err)
	}
	app.logger.Infow("Database ready", "driver", app.cfg.Database.Driver)

	if !app.cfg.Broadcast.Enabled {
		return nil
	}

	app.rdb = redis.NewClient(&redis.Options{Addr: app.cfg.Redis.Addr})
	if err := app.rdb.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("connect to Redis (%s): %w", app.cfg.Redis.Addr, err)
	}
	app.logger.Infow("Connected to Redis", "addr", app.cfg.Redis.Addr)
	return nil
}

func (app *App) initServices() error {
	driver := app.cfg.Database.Driver
	store := service.NewStore(
		repository.NewSQLRateRepository(app.db, driver),
		repository.NewSQLSubscriberRepository(app.db, driver),
		repository.NewSQLStatsRepository(app.db, driver),
		app.logger,
	)

	var opts []service.Option
	if len(app.cfg.Kafka.Brokers) > 0 {
		app.publisher = events.NewKafkaPublisher(app.cfg.Kafka.Brokers, app.cfg.Kafka.Topic)
		opts = append(opts, service.WithPublisher(app.publisher))
		app.logger.Infow("Rate events enabled", "brokers", app.cfg.Kafka.Brokers, "topic", app.cfg.Kafka.Topic)
	}
	rates := service.NewRateService(store, app.logger, opts...)

	sources := newSources(app.cfg.Sources)
	renderer := chart.NewRenderer(app.cfg.Chart.Dir, app.cfg.Chart.Prefix, app.logger)

	tg, err := bot.NewTelegramAPI(app.cfg.Bot.Token)
	if err != nil {
		return err
	}
	app.logger.Infow("Authorized on Telegram", "account", tg.Self.UserName)
	messenger := bot.NewTelegramMessenger(tg)
	if err := messenger.RegisterCommands(bot.Commands); err != nil {
		app.logger.Warnw("Failed to register bot commands", "error", err)
	}

	dispatcher := bot.NewDispatcher(store, rates, renderer, messenger, sources, bot.DispatcherConfig{
		AdminID:     app.cfg.Bot.AdminID,
		HistoryDays: app.cfg.Bot.HistoryDays,
		BotUsername: tg.Self.UserName,
	}, app.logger)
	app.poller = bot.NewPoller(tg, dispatcher, app.cfg.Bot.PollTimeoutSec, app.cfg.Bot.MaxConcurrentUpdates, app.logger)

	sweep := &scheduler.SweepJob{
		Spec:    app.cfg.Chart.SweepCron,
		Dir:     renderer.Dir(),
		Prefix:  renderer.Prefix(),
		MaxAge:  time.Duration(app.cfg.Chart.MaxAgeSec) * time.Second,
		Sweeper: renderer,
	}

	var broadcast *scheduler.BroadcastJob
	if app.cfg.Broadcast.Enabled {
		broadcast, err = app.initBroadcast(store, rates, sources, messenger)
		if err != nil {
			return err
		}
	}
	app.scheduler = scheduler.NewScheduler(broadcast, sweep, app.logger)

	app.initHTTP(store)
	return nil
}

func (app *App) initBroadcast(store *service.Store, rates *service.RateService, sources bot.Sources, messenger *bot.TelegramMessenger) (*scheduler.BroadcastJob, error) {
	source, ok := sources.ByName(app.cfg.Broadcast.Source)
	if !ok {
		return nil, fmt.Errorf("broadcast.source %q is not a known rate source", app.cfg.Broadcast.Source)
	}
	currency, err := service.NormalizeCurrency(app.cfg.Broadcast.Currency)
	if err != nil {
		return nil, fmt.Errorf("broadcast.currency %q: %w", app.cfg.Broadcast.Currency, err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: app.cfg.Redis.Addr}
	app.asynqClient = asynq.NewClient(redisOpt)
	app.asynqServer = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: app.cfg.Worker.Concurrency,
	})
	app.asynqMux = asynq.NewServeMux()
	app.asynqMux.HandleFunc(worker.TaskTypeDeliverBroadcast, worker.NewDeliveryHandler(messenger, app.logger))
	app.logger.Infow("Asynq configured", "addr", app.cfg.Redis.Addr, "concurrency", app.cfg.Worker.Concurrency)

	return &scheduler.BroadcastJob{
		Spec:     app.cfg.Broadcast.Cron,
		Currency: currency,
		Source:   source,
		Rates:    rates,
		Subs:     store,
		Deliverer: worker.NewAsynqEnqueuer(
			app.asynqClient,
			app.cfg.Worker.MaxRetry,
			time.Duration(app.cfg.Worker.TimeoutSec)*time.Second,
		),
	}, nil
}

func newSources(cfg config.SourcesConfig) bot.Sources {
	return bot.Sources{
		NBU:        provider.NewNBUProvider(cfg.NBU.URL, cfg.NBU.TimeoutSec),
		PrivatBank: provider.NewPrivatBankProvider(cfg.PrivatBank.URL, cfg.PrivatBank.TimeoutSec),
		Monobank:   provider.NewMonobankProvider(cfg.Monobank.URL, cfg.Monobank.TimeoutSec),
		Minfin:     provider.NewMinfinProvider(cfg.Minfin.URL, cfg.Minfin.Selector, cfg.Minfin.UserAgent, cfg.Minfin.TimeoutSec),
	}
}

// Run starts the chat poller, HTTP server, scheduler and Asynq worker,
// blocking until the context is canceled.
func (app *App) Run(ctx context.Context) error {
	if err := app.scheduler.Start(ctx); err != nil {
		_ = app.close()
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(app.pollerDone)
		return app.poller.Run(ctx)
	})

	g.Go(func() error {
		app.logger.Infow("HTTP server listening", "port", app.cfg.Server.Port)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if app.asynqServer != nil {
		g.Go(func() error {
			app.logger.Infow("Starting Asynq worker server")
			if err := app.asynqServer.Start(app.asynqMux); err != nil {
				return fmt.Errorf("asynq worker failed to start: %w", err)
			}
			<-ctx.Done()
			return nil
		})
	}

	// Graceful shutdown: triggered by context cancellation (signal or component failure).
	g.Go(func() error {
		<-ctx.Done()
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown performs ordered teardown: HTTP server -> scheduler -> chat poller ->
// Asynq worker -> connections. Nothing closes the database while a handler may
// still write to it.
func (app *App) shutdown() error {
	app.logger.Infow("Shutting down...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Errorw("HTTP server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	app.scheduler.Stop()

	select {
	case <-app.pollerDone:
	case <-shutdownCtx.Done():
		app.logger.Warnw("Chat poller did not drain in time")
	}

	if app.asynqServer != nil {
		app.asynqServer.Shutdown()
	}

	if err := app.close(); err != nil {
		app.logger.Errorw("Connection cleanup errors", "error", err)
		errs = append(errs, err)
	}

	app.logger.Infow("Shutdown complete")
	return errors.Join(errs...)
}
