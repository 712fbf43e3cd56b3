package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"activepanel/internal/cleanup"
	"activepanel/internal/config"
	"activepanel/internal/database"
	"activepanel/internal/repository"
)

// One-shot purge for cron-style deployments. The API process runs the same
// pass on its own schedule; this binary exists for setups that prefer an
// external scheduler.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ledger := repository.NewRefreshTokenRepository(db)
	blacklist := repository.NewBlacklistRepository(db)

	scheduler := cleanup.NewScheduler(ledger, blacklist, cfg.CleanupInterval, cfg.Retention)
	scheduler.RunOnce(context.Background())
}
