package main

import (
	"flag"
	"log"
	"os"

	"KalshiFlow/internal/di"
	"KalshiFlow/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("Starting KalshiFlow backend env=%s", cfg.Environment)
	log.Printf("  Kalshi API:  %s", cfg.Kalshi.BaseURL)
	log.Printf("  API key id:  %s", cfg.MaskedAPIKeyID())
	log.Printf("  Private key: %t", cfg.Kalshi.PrivateKeyPEM != "")
	if !cfg.HasCredentials() {
		log.Printf("  Warning: KALSHI_API_KEY_ID and KALSHI_PRIVATE_KEY are not both set, /api/markets will report no markets")
	}

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	log.Printf("listening on %s:%d", cfg.Server.Host, cfg.Server.Port)

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
