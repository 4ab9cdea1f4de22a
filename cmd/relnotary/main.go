package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/relnotary/relnotary/internal/changelog"
	"github.com/relnotary/relnotary/internal/config"
	"github.com/relnotary/relnotary/internal/gh"
	"github.com/relnotary/relnotary/internal/ingest"
	"github.com/relnotary/relnotary/internal/llm"
	"github.com/relnotary/relnotary/internal/logging"
	"github.com/relnotary/relnotary/internal/server"
	"github.com/relnotary/relnotary/internal/store"
)

var version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		fmt.Printf("relnotary v%s\n", version)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: relnotary <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the webhook and changelog server")
	fmt.Println("  version  Print version information")
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	envFile := fs.String("env-file", "", "Path to .env file (optional)")
	fs.Parse(args)

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("Warning: could not load env file %s: %v", *envFile, err)
		}
	} else {
		godotenv.Load(".env")
		godotenv.Load("/etc/relnotary/relnotary.env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Mode)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync()

	s, err := store.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("opening store", "driver", cfg.Database.Driver, "error", err)
	}
	if err := s.SeedCategories(context.Background()); err != nil {
		logger.Fatal("seeding categories", "error", err)
	}

	if cfg.GitHub.WebhookSecret == "" {
		logger.Warn("no webhook secret configured, all webhook deliveries will be rejected")
	}

	// Backfill needs an API token. Without one the server still ingests
	// webhooks, it just cannot fetch historical pull requests.
	var src ingest.SourceControl
	if cfg.GitHub.Token != "" {
		client, err := gh.New(cfg.GitHub.Token)
		if err != nil {
			logger.Fatal("creating github client", "error", err)
		}
		src = client
	} else {
		logger.Warn("no github token configured, release backfill disabled")
	}

	var gen llm.Generator
	if cfg.LLM.APIKey != "" {
		gen, err = llm.New(cfg.LLM)
		if err != nil {
			logger.Fatal("creating llm client", "provider", cfg.LLM.Provider, "error", err)
		}
	} else {
		logger.Warn("no llm api key configured, changelogs will use the deterministic renderer")
	}

	engine := ingest.New(s, src, logger)
	assembler := changelog.New(s, gen, logger, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)

	srv := server.New(cfg, s, engine, assembler, logger)
	if err := srv.ListenAndServeWithShutdown(); err != nil {
		logger.Fatal("server error", "error", err)
	}
}
