package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"sessionwatch/config"
	"sessionwatch/internal/analyzer"
	inputkafka "sessionwatch/internal/input/kafka"
	"sessionwatch/internal/input/redisqueue"
	"sessionwatch/internal/logger"
	"sessionwatch/internal/output/alertjson"
	"sessionwatch/internal/output/clickhouse"
	"sessionwatch/internal/output/eventjson"
	"sessionwatch/internal/pipeline"
	"sessionwatch/internal/publish/redispub"
	"sessionwatch/internal/reaper"
	"sessionwatch/internal/rules"
	"sessionwatch/internal/scorer"
	"sessionwatch/internal/server"
	"sessionwatch/internal/sessiontable"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("sessionwatch.yml"); err == nil {
		return "sessionwatch.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "sessionwatch.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "sessionwatch.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.SessionWatch.Server.Addr == "" {
		cfg.SessionWatch.Server.Addr = ":8300"
	}

	if cfg.SessionWatch.Input.Mode == "" {
		cfg.SessionWatch.Input.Mode = "none"
	}
	if cfg.SessionWatch.Input.Redis.Addr == "" {
		cfg.SessionWatch.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.SessionWatch.Input.Redis.Key == "" {
		cfg.SessionWatch.Input.Redis.Key = "session_events_queue"
	}
	if cfg.SessionWatch.Input.Redis.BlockTimeout == 0 {
		cfg.SessionWatch.Input.Redis.BlockTimeout = 5 * time.Second
	}
	if cfg.SessionWatch.Input.Kafka.Topic == "" {
		cfg.SessionWatch.Input.Kafka.Topic = "session-events"
	}

	if cfg.SessionWatch.Analyzer.TabSwitchThreshold <= 0 {
		cfg.SessionWatch.Analyzer.TabSwitchThreshold = 3
	}
	if cfg.SessionWatch.Analyzer.TabSwitchWindow <= 0 {
		cfg.SessionWatch.Analyzer.TabSwitchWindow = 60 * time.Second
	}
	if cfg.SessionWatch.Analyzer.InactivityThreshold <= 0 {
		cfg.SessionWatch.Analyzer.InactivityThreshold = 30 * time.Second
	}
	if cfg.SessionWatch.Analyzer.HeartbeatTimeout <= 0 {
		cfg.SessionWatch.Analyzer.HeartbeatTimeout = 10 * time.Second
	}
	if cfg.SessionWatch.Analyzer.ScoreThreshold <= 0 {
		cfg.SessionWatch.Analyzer.ScoreThreshold = 0.7
	}

	if cfg.SessionWatch.Scorer.Timeout <= 0 {
		cfg.SessionWatch.Scorer.Timeout = 2 * time.Second
	}

	if cfg.SessionWatch.Storage.Mode == "" {
		cfg.SessionWatch.Storage.Mode = "file"
	}
	if cfg.SessionWatch.Storage.File.EventsPath == "" {
		cfg.SessionWatch.Storage.File.EventsPath = "output/events.jsonl"
	}
	if cfg.SessionWatch.Storage.File.AlertsPath == "" {
		cfg.SessionWatch.Storage.File.AlertsPath = "output/alerts.jsonl"
	}
	if cfg.SessionWatch.Storage.ClickHouse.Database == "" {
		cfg.SessionWatch.Storage.ClickHouse.Database = "sessionwatch"
	}

	if cfg.SessionWatch.Publish.Addr == "" {
		cfg.SessionWatch.Publish.Addr = "127.0.0.1:6379"
	}
	if cfg.SessionWatch.Publish.Channel == "" {
		cfg.SessionWatch.Publish.Channel = "session_events"
	}

	if cfg.SessionWatch.Pipeline.QueueSize <= 0 {
		cfg.SessionWatch.Pipeline.QueueSize = 1024
	}
	if cfg.SessionWatch.Pipeline.SinkWorkers <= 0 {
		cfg.SessionWatch.Pipeline.SinkWorkers = 4
	}
	if cfg.SessionWatch.Pipeline.RetryAttempts <= 0 {
		cfg.SessionWatch.Pipeline.RetryAttempts = 3
	}
	if cfg.SessionWatch.Pipeline.RetryBackoff <= 0 {
		cfg.SessionWatch.Pipeline.RetryBackoff = 100 * time.Millisecond
	}

	if cfg.SessionWatch.Reaper.Interval <= 0 {
		cfg.SessionWatch.Reaper.Interval = 60 * time.Second
	}
	if cfg.SessionWatch.Reaper.Expiry <= 0 {
		cfg.SessionWatch.Reaper.Expiry = 300 * time.Second
	}

	if cfg.SessionWatch.Logging.Level == "" {
		cfg.SessionWatch.Logging.Level = "info"
	}
}

func main() {
	configArg := ""
	if len(os.Args) > 1 {
		configArg = os.Args[1]
	}
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.SessionWatch.Logging.Enabled, cfg.SessionWatch.Logging.Level, cfg.SessionWatch.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Infof("SessionWatch starting")
	logger.Infof("Config loaded from: %s", configPath)

	var engine rules.Engine
	if cfg.SessionWatch.Rules.Enabled {
		if strings.TrimSpace(cfg.SessionWatch.Rules.Path) == "" {
			logger.Warnf("Rules enabled but rules.path is empty; supplementary detection disabled")
		} else {
			sigmaEngine, stats, err := rules.NewSigmaEngine(cfg.SessionWatch.Rules.Path)
			if err != nil {
				log.Fatalf("Failed to load detection rules: %v", err)
			}
			engine = sigmaEngine
			logger.Infof("Detection rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d",
				stats.Loaded, stats.SkippedComplex, stats.SkippedInvalid, stats.TotalFiles)
			if stats.Loaded == 0 {
				logger.Warnf("No compatible detection rules loaded")
			}
		}
	}

	var sc scorer.Scorer
	if cfg.SessionWatch.Scorer.Enabled {
		httpScorer, err := scorer.NewHTTPScorer(scorer.HTTPConfig{
			URL:     cfg.SessionWatch.Scorer.URL,
			Timeout: cfg.SessionWatch.Scorer.Timeout,
			Headers: cfg.SessionWatch.Scorer.Headers,
		})
		if err != nil {
			log.Fatalf("Failed to create anomaly scorer: %v", err)
		}
		sc = httpScorer
		logger.Infof("Anomaly scorer: %s", cfg.SessionWatch.Scorer.URL)
	}

	var eventWriter pipeline.EventWriter
	var alertWriter pipeline.AlertWriter
	var alertQuerier server.AlertQuerier
	switch cfg.SessionWatch.Storage.Mode {
	case "file":
		ew, err := eventjson.NewWriter(cfg.SessionWatch.Storage.File.EventsPath)
		if err != nil {
			log.Fatalf("Failed to create event file writer: %v", err)
		}
		aw, err := alertjson.NewWriter(cfg.SessionWatch.Storage.File.AlertsPath)
		if err != nil {
			log.Fatalf("Failed to create alert file writer: %v", err)
		}
		eventWriter = ew
		alertWriter = aw
		logger.Infof("Storage mode: file (%s, %s)", cfg.SessionWatch.Storage.File.EventsPath, cfg.SessionWatch.Storage.File.AlertsPath)
	case "clickhouse":
		store, err := clickhouse.NewStore(clickhouse.Config{
			Addr:        cfg.SessionWatch.Storage.ClickHouse.Addr,
			Database:    cfg.SessionWatch.Storage.ClickHouse.Database,
			Username:    cfg.SessionWatch.Storage.ClickHouse.Username,
			Password:    cfg.SessionWatch.Storage.ClickHouse.Password,
			DialTimeout: cfg.SessionWatch.Storage.ClickHouse.DialTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to create ClickHouse store: %v", err)
		}
		eventWriter = store
		alertWriter = store
		alertQuerier = store
		logger.Infof("Storage mode: clickhouse (%s/%s)", cfg.SessionWatch.Storage.ClickHouse.Addr, cfg.SessionWatch.Storage.ClickHouse.Database)
	default:
		log.Fatalf("Unknown storage mode: %s", cfg.SessionWatch.Storage.Mode)
	}

	var publisher pipeline.Publisher
	if cfg.SessionWatch.Publish.Enabled {
		pub, err := redispub.New(redispub.Config{
			Addr:     cfg.SessionWatch.Publish.Addr,
			Password: cfg.SessionWatch.Publish.Password,
			DB:       cfg.SessionWatch.Publish.DB,
			Channel:  cfg.SessionWatch.Publish.Channel,
		})
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}
		publisher = pub
		logger.Infof("Publishing events to Redis channel %s", cfg.SessionWatch.Publish.Channel)
	}

	table := sessiontable.New()
	an := analyzer.New(analyzer.Config{
		TabSwitchThreshold:  cfg.SessionWatch.Analyzer.TabSwitchThreshold,
		TabSwitchWindow:     cfg.SessionWatch.Analyzer.TabSwitchWindow,
		InactivityThreshold: cfg.SessionWatch.Analyzer.InactivityThreshold,
		HeartbeatTimeout:    cfg.SessionWatch.Analyzer.HeartbeatTimeout,
		ScoreThreshold:      cfg.SessionWatch.Analyzer.ScoreThreshold,
	}, engine, sc)
	pipe := pipeline.New(table, an, eventWriter, alertWriter, publisher, pipeline.Config{
		QueueSize:     cfg.SessionWatch.Pipeline.QueueSize,
		SinkWorkers:   cfg.SessionWatch.Pipeline.SinkWorkers,
		RetryAttempts: cfg.SessionWatch.Pipeline.RetryAttempts,
		RetryBackoff:  cfg.SessionWatch.Pipeline.RetryBackoff,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe.Start(ctx)

	rp := reaper.New(table, cfg.SessionWatch.Reaper.Interval, cfg.SessionWatch.Reaper.Expiry)
	go rp.Run(ctx)

	switch cfg.SessionWatch.Input.Mode {
	case "none":
	case "redis":
		consumer, err := redisqueue.NewConsumer(redisqueue.Config{
			Addr:         cfg.SessionWatch.Input.Redis.Addr,
			Password:     cfg.SessionWatch.Input.Redis.Password,
			DB:           cfg.SessionWatch.Input.Redis.DB,
			Key:          cfg.SessionWatch.Input.Redis.Key,
			BlockTimeout: cfg.SessionWatch.Input.Redis.BlockTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to create Redis consumer: %v", err)
		}
		defer consumer.Close()
		go consumer.Run(ctx, pipe.Submit)
	case "kafka":
		consumer, err := inputkafka.NewConsumer(inputkafka.Config{
			Brokers: cfg.SessionWatch.Input.Kafka.Brokers,
			Topic:   cfg.SessionWatch.Input.Kafka.Topic,
			GroupID: cfg.SessionWatch.Input.Kafka.GroupID,
		})
		if err != nil {
			log.Fatalf("Failed to create Kafka consumer: %v", err)
		}
		defer consumer.Close()
		go consumer.Run(ctx, pipe.Submit)
	default:
		log.Fatalf("Unknown input mode: %s", cfg.SessionWatch.Input.Mode)
	}

	srv := server.New(pipe, table, alertQuerier)
	httpServer := &http.Server{
		Addr:    cfg.SessionWatch.Server.Addr,
		Handler: srv.Router(),
	}
	go func() {
		logger.Infof("Listening on %s", cfg.SessionWatch.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}

	cancel()
	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}

	logger.Infof("SessionWatch stopped")
}
