package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"rates-app/internal/collector"
	"rates-app/internal/config"
	"rates-app/internal/domain"
	"rates-app/internal/repository"
	"rates-app/internal/source"
	"rates-app/internal/util"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := &util.RatesLogger{}
	if err := logger.Init(util.LoggerOptions{
		Dir:      cfg.LogDir,
		FileName: "ingest.log",
		Level:    cfg.LogLevel,
		Console:  true,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.DeInit()

	if err := util.EnsureFolder(filepath.Dir(cfg.DBPath)); err != nil {
		log.Fatalf("Failed to create database folder: %v", err)
	}

	var store domain.RateStore = repository.NewSQLiteStore(cfg.DBPath, logger)
	if err := store.Init(); err != nil {
		log.Fatalf("Failed to initialize SQLite store for ingestion: %v", err)
	}
	defer store.Close()

	client := source.NewClient(cfg.SourceURL, source.WithTimeout(cfg.FetchTimeout))
	coll := collector.New(collector.Config{
		Interval:     cfg.FetchInterval,
		MaxPoints:    cfg.MaxPoints,
		FetchTimeout: cfg.FetchTimeout,
	}, client, store, nil, logger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := coll.RunOnce(ctx); err != nil {
		log.Printf("Ingestion failed: %v", err)
		return
	}

	log.Println("Data ingestion complete.")
}
