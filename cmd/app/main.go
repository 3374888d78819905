package main

import (
	"flag"
	"log"
	"os"

	"NFTAppraiser/internal/di"
	"NFTAppraiser/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s providers=%d", cfg.Environment, len(cfg.Providers.Endpoints))

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
	log.Printf("kafka: brokers=%v outcomes=%s retraining=%s", cfg.Kafka.Brokers, cfg.Kafka.OutcomesTopic, cfg.Kafka.RetrainingTopic)

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
