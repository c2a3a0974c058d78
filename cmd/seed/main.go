package main

import (
	"context"
	"fmt"
	"os"

	"github.com/frontandrew/attestation/internal/pkg/config"
	"github.com/frontandrew/attestation/internal/pkg/database"
	"github.com/frontandrew/attestation/internal/pkg/hash"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository/postgres"
	"github.com/frontandrew/attestation/internal/usecase/user"
)

// seed создает первого администратора из SEED_ADMIN_* переменных
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.Output)

	if cfg.Seed.AdminPassword == "" {
		log.Fatal("SEED_ADMIN_PASSWORD is required")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer database.Close(db)

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("Failed to apply migrations", map[string]interface{}{
			"error": err.Error(),
		})
	}

	users := user.NewService(postgres.NewStore(db), hash.New(cfg.Auth.BcryptCost), log)
	created, err := users.EnsureAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, cfg.Seed.AdminName)
	if err != nil {
		log.Fatal("Failed to seed administrator", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if !created {
		log.Info("Administrator already exists", map[string]interface{}{
			"email": cfg.Seed.AdminEmail,
		})
		return
	}
	log.Info("Administrator created", map[string]interface{}{
		"email": cfg.Seed.AdminEmail,
	})
}
