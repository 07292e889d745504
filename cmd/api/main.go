package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"rates-app/internal/collector"
	"rates-app/internal/config"
	"rates-app/internal/domain"
	"rates-app/internal/hub"
	"rates-app/internal/metrics"
	"rates-app/internal/query"
	"rates-app/internal/repository"
	"rates-app/internal/router"
	"rates-app/internal/source"
	"rates-app/internal/util"
)

func LoggerInitialize(cfg *config.Config) (*util.RatesLogger, error) {

	ratesLogger := &util.RatesLogger{}

	if err := ratesLogger.Init(util.LoggerOptions{
		Dir:      cfg.LogDir,
		FileName: "webService.log",
		Level:    cfg.LogLevel,
		Console:  cfg.LogConsole,
	}); err != nil {
		return nil, err
	}

	ratesLogger.LogEvent(util.LOG_LEVEL_INFO, "Service started")

	currentTime := time.Now().Format(time.RFC3339)

	fmt.Fprintf(os.Stderr, "\n%s: RatesApp started \n", currentTime)

	return ratesLogger, nil
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "rates-app:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := LoggerInitialize(cfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.DeInit()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	if err := util.EnsureFolder(filepath.Dir(cfg.DBPath)); err != nil {
		return err
	}
	var store domain.RateStore = repository.NewSQLiteStore(cfg.DBPath, logger)
	if err := store.Init(); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to initialize rate store. Err -", err)
		return fmt.Errorf("initialize rate store: %w", err)
	}
	defer store.Close()

	client := source.NewClient(cfg.SourceURL, source.WithTimeout(cfg.FetchTimeout))
	broadcast := hub.New(cfg.SubscriberBuffer, logger, appMetrics)

	coll := collector.New(collector.Config{
		Interval:     cfg.FetchInterval,
		MaxPoints:    cfg.MaxPoints,
		FetchTimeout: cfg.FetchTimeout,
	}, client, store, broadcast, logger, appMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := coll.Start(ctx); err != nil {
		return err
	}

	server := router.NewServer(cfg.ListenAddr, router.NewRouter(router.Deps{
		Service:  query.NewService(client, store),
		Ticks:    coll,
		Source:   client,
		Hub:      broadcast,
		Logger:   logger,
		Metrics:  appMetrics,
		Gatherer: registry,
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return router.Run(gctx, server, cfg.ShutdownTimeout, logger)
	})
	g.Go(func() error {
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := coll.Stop(stopCtx)
		broadcast.Close()
		return err
	})

	err = g.Wait()
	if err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Service stopped with error:", err)
	} else {
		logger.LogEvent(util.LOG_LEVEL_INFO, "Service stopped")
	}
	return err
}
