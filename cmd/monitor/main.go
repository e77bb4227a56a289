package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-trend-monitor/internal/config"
	"solana-trend-monitor/internal/dedup"
	"solana-trend-monitor/internal/dispatch"
	"solana-trend-monitor/internal/forward"
	"solana-trend-monitor/internal/logger"
	"solana-trend-monitor/internal/observability"
	"solana-trend-monitor/internal/oracle"
	"solana-trend-monitor/internal/storage"
	chstore "solana-trend-monitor/internal/storage/clickhouse"
	"solana-trend-monitor/internal/storage/memory"
	"solana-trend-monitor/internal/storage/migrations"
	pgstore "solana-trend-monitor/internal/storage/postgres"
	"solana-trend-monitor/internal/stream"
	"solana-trend-monitor/internal/telegram"
	"solana-trend-monitor/internal/tracker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Optional .env file with credentials")
	flag.Parse()

	log := logger.New()

	if err := config.LoadEnv(*envFile); err != nil {
		log.WithError(err).Fatal("Failed to load environment")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if err := log.Configure(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Console:    cfg.Logging.Console,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		log.WithError(err).Fatal("Failed to configure logger")
	}
	entry := log.WithComponent("main")

	// Start metrics server if enabled
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, entry)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		entry.WithField("signal", sig.String()).Info("Received signal, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		sig = <-sigCh
		entry.WithField("signal", sig.String()).Warn("Received second signal, forcing immediate shutdown")
		os.Exit(1)
	}()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		entry.WithError(err).Fatal("Monitor stopped with error")
	}
	entry.Info("Shutdown complete")
}

func serveMetrics(addr string, log *logger.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	log.WithField("addr", addr).Info("Starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("Metrics server error")
	}
}

// stores groups the persistence dependencies of the monitor.
type stores struct {
	tracking storage.TrackingStore
	progress storage.SourceProgressStore
	samples  storage.PriceSampleStore // nil when the sample log is disabled
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg config.Config, log *logger.Entry) (*stores, error) {
	s := &stores{}

	if cfg.Storage.UseMemory {
		s.tracking = memory.NewTrackingStore()
		s.progress = memory.NewSourceProgressStore()
		log.Info("Using in-memory storage")
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN,
			pgstore.WithMaxConns(cfg.Storage.PostgresMaxConns))
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if len(applied) > 0 {
			log.WithField("migrations", applied).Info("Applied PostgreSQL migrations")
		}
		s.tracking = pgstore.NewTrackingStore(pool)
		s.progress = pgstore.NewSourceProgressStore(pool)
		log.Info("Using PostgreSQL storage")
	}

	if cfg.Storage.ClickhouseDSN != "" {
		conn, applied, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		if len(applied) > 0 {
			log.WithField("migrations", applied).Info("Applied ClickHouse migrations")
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.samples = chstore.NewPriceSampleStore(conn)
		log.Info("Price sample log enabled (ClickHouse)")
	}

	return s, nil
}

func openCache(ctx context.Context, cfg config.Config) (dedup.Cache, func(), error) {
	if cfg.Dedup.Backend != config.DedupRedis {
		return dedup.NewMemoryCache(cfg.Dedup.TTL), func() {}, nil
	}
	client, err := dedup.NewRedisClient(ctx, cfg.Dedup.Redis.Addr, cfg.Dedup.Redis.Password, cfg.Dedup.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return dedup.NewRedisCache(client, cfg.Dedup.TTL, cfg.Dedup.Redis.Prefix), func() { client.Close() }, nil
}

func run(ctx context.Context, cfg config.Config, log *logger.Log) error {
	entry := log.WithComponent("main")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, log.WithComponent("storage"))
	if err != nil {
		return err
	}
	defer st.Close()

	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	bot := telegram.NewClient(cfg.Telegram.BotToken,
		telegram.WithBaseURL(cfg.Telegram.BaseURL),
		telegram.WithTimeout(cfg.Source.PollTimeout+10*time.Second),
	)
	if err := bot.Connect(ctx); err != nil {
		// The forwarder reconnects lazily, so a failed first connect is not fatal.
		entry.WithError(err).Warn("Telegram connect failed, will retry on first send")
	} else if me := bot.Me(); me != nil {
		entry.WithField("bot", me.UserName).Info("Connected to Telegram")
	}

	fwdOpts := []forward.Option{forward.WithLogger(log.WithComponent("forward"))}
	if !cfg.Forward.Bell {
		fwdOpts = append(fwdOpts, forward.WithNotifier(nil))
	}
	forwarder := forward.New(bot, forward.Config{
		MaxAttempts: cfg.Forward.MaxAttempts,
		RetryDelay:  cfg.Forward.RetryDelay,
	}, fwdOpts...)

	dex := oracle.NewDexScreener(
		oracle.WithBaseURL(cfg.Oracle.BaseURL),
		oracle.WithTimeout(cfg.Oracle.Timeout),
		oracle.WithRateLimit(cfg.Oracle.RequestsPerMinute, cfg.Oracle.Burst),
	)
	quoter := oracle.NewClient(dex, log.WithComponent("oracle"))

	samplerOpts := []tracker.SamplerOption{
		tracker.WithLocation(loc),
		tracker.WithLogger(log.WithComponent("tracker")),
	}
	if st.samples != nil {
		samplerOpts = append(samplerOpts, tracker.WithSampleLog(st.samples))
	}
	sampler := tracker.NewSampler(quoter, st.tracking, cfg.OffsetList(), samplerOpts...)
	registry := tracker.NewRegistry(sampler, cfg.Tracker.MaxConcurrentRuns, log.WithComponent("tracker"))

	var source dispatch.Source
	switch cfg.Source.Kind {
	case config.SourceWebSocket:
		source = stream.NewWSSource(cfg.Source.WebSocketURL, cfg.Monitor.Origins, nil, log.WithComponent("stream"))
	default:
		source = telegram.NewUpdatesSource(bot, cfg.Monitor.Origins,
			telegram.WithProgressStore(st.progress),
			telegram.WithPollTimeout(cfg.Source.PollTimeout),
			telegram.WithSourceLogger(log.WithComponent("telegram")),
		)
	}

	dispatcher := dispatch.New(dispatch.Config{
		Destinations: cfg.Monitor.Destinations,
		SendDelay:    cfg.Monitor.SendDelay,
	}, cache, forwarder, registry, dispatch.WithLogger(log.WithComponent("dispatch")))

	entry.WithFields(logger.Fields{
		"source":       cfg.Source.Kind,
		"origins":      cfg.Monitor.Origins,
		"destinations": cfg.Monitor.Destinations,
		"offsets":      len(cfg.Monitor.Offsets),
	}).Info("Monitoring messages")

	runErr := dispatcher.Run(ctx, source)

	// Let in-flight tracking runs finish within the grace period.
	if active := registry.Active(); active > 0 {
		entry.WithField("active_runs", active).Info("Draining tracking runs")
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Tracker.DrainTimeout)
		if err := registry.Drain(drainCtx); err != nil {
			entry.WithField("active_runs", registry.Active()).Warn("Drain timed out, abandoning remaining runs")
		}
		cancel()
	}
	registry.Abandon()

	return runErr
}
