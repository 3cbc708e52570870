package main

import (
	"flag"
	"log"
	"os"

	"CourtArb/internal/di"
	"CourtArb/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s redis=%t kafka=%t clickhouse=%t",
		cfg.Environment, cfg.Cache.Redis.Enabled, cfg.Kafka.Enabled, cfg.ClickHouse.Enabled)

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	err = app.Run()
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
