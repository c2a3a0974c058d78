package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	deliveryHTTP "github.com/frontandrew/attestation/internal/delivery/http"
	"github.com/frontandrew/attestation/internal/document"
	"github.com/frontandrew/attestation/internal/metrics"
	"github.com/frontandrew/attestation/internal/pkg/config"
	"github.com/frontandrew/attestation/internal/pkg/database"
	"github.com/frontandrew/attestation/internal/pkg/hash"
	"github.com/frontandrew/attestation/internal/pkg/jwt"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/pkg/redis"
	"github.com/frontandrew/attestation/internal/repository/cached"
	"github.com/frontandrew/attestation/internal/repository/postgres"
	"github.com/frontandrew/attestation/internal/usecase/agency"
	"github.com/frontandrew/attestation/internal/usecase/auth"
	"github.com/frontandrew/attestation/internal/usecase/certificate"
	"github.com/frontandrew/attestation/internal/usecase/coverage"
	"github.com/frontandrew/attestation/internal/usecase/importer"
	"github.com/frontandrew/attestation/internal/usecase/ledger"
	"github.com/frontandrew/attestation/internal/usecase/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// =========================================================================
	// Загрузка конфигурации
	// =========================================================================

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// =========================================================================
	// Инициализация logger
	// =========================================================================

	log := logger.New(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.Output)
	log.Info("Starting attestation API server", map[string]interface{}{
		"version": "1.0.0",
	})

	// =========================================================================
	// Подключение к PostgreSQL
	// =========================================================================

	ctx := context.Background()
	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer database.Close(db)

	log.Info("Connected to PostgreSQL", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Database,
	})

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("Failed to apply migrations", map[string]interface{}{
				"error": err.Error(),
			})
		}
		log.Info("Database schema is up to date")
	}

	// =========================================================================
	// Хранилище и кэш
	// =========================================================================

	store := postgres.NewStore(db)

	var certificateOptions []certificate.Option
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, redis.Config{
			Host:      cfg.Redis.Host,
			Port:      cfg.Redis.Port,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			Timeout:   cfg.Redis.Timeout,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			// Без Redis проверка аттестатов читает напрямую из БД
			log.Warn("Redis is not available, verification cache disabled", map[string]interface{}{
				"error":   err.Error(),
				"address": cfg.Redis.Address(),
			})
		} else {
			defer redisClient.Close()

			cachedCertificates := cached.NewCertificateRepository(store.Repositories().Certificates, redisClient, log)
			certificateOptions = append(certificateOptions,
				certificate.WithPublicReader(cachedCertificates),
				certificate.WithInvalidator(cachedCertificates),
			)
			log.Info("Connected to Redis", map[string]interface{}{
				"address": cfg.Redis.Address(),
			})
		}
	}

	// =========================================================================
	// Метрики
	// =========================================================================

	m := metrics.New(prometheus.DefaultRegisterer)

	// =========================================================================
	// Создание JWT token service
	// =========================================================================

	tokenService := jwt.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.AccessExpiry)
	hasher := hash.New(cfg.Auth.BcryptCost)

	log.Info("JWT token service initialized")

	// =========================================================================
	// Создание use case services
	// =========================================================================

	authService := auth.NewService(store.Repositories().Users, hasher, tokenService, log)
	userService := user.NewService(store, hasher, log)
	agencyService := agency.NewService(store, m, log)
	stockService := ledger.NewService(store, m, log)
	coverageService := coverage.NewService(store)
	certificateService := certificate.NewService(store, m, log, certificateOptions...)
	importService := importer.NewService(store, importer.Options{
		ChargeSkippedDuplicates: cfg.Import.ChargeSkippedDuplicates,
		EnforceCoverage:         cfg.Import.EnforceCoverage,
	}, m, log)
	renderer := document.NewRenderer(cfg.Document.Issuer, cfg.Document.PublicURL)

	log.Info("Use case services initialized")

	// =========================================================================
	// Создание HTTP handlers
	// =========================================================================

	handlers := deliveryHTTP.Handlers{
		Auth:        deliveryHTTP.NewAuthHandler(authService, log),
		Certificate: deliveryHTTP.NewCertificateHandler(certificateService, coverageService, renderer, log),
		Import:      deliveryHTTP.NewImportHandler(importService, cfg.Import.MaxUploadSize, log),
		Agency:      deliveryHTTP.NewAgencyHandler(agencyService, stockService, log),
		User:        deliveryHTTP.NewUserHandler(userService, log),
	}

	log.Info("HTTP handlers initialized")

	// =========================================================================
	// Создание и настройка HTTP router
	// =========================================================================

	router := deliveryHTTP.NewRouter(
		handlers,
		authService,
		m,
		promhttp.Handler(),
		db,
		cfg,
		log,
	)

	handler := router.Setup()

	log.Info("HTTP router configured")

	// =========================================================================
	// Создание HTTP сервера
	// =========================================================================

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// =========================================================================
	// Запуск сервера в goroutine
	// =========================================================================

	serverErrors := make(chan error, 1)

	go func() {
		log.Info("API server listening", map[string]interface{}{
			"address": srv.Addr,
		})
		serverErrors <- srv.ListenAndServe()
	}()

	// =========================================================================
	// Graceful shutdown
	// =========================================================================

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}

	case sig := <-shutdown:
		log.Info("Shutdown signal received", map[string]interface{}{
			"signal": sig.String(),
		})

		// Даем серверу 30 секунд на graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Graceful shutdown failed", map[string]interface{}{
				"error": err.Error(),
			})

			if err := srv.Close(); err != nil {
				log.Fatal("Failed to close server", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}

		log.Info("Server stopped gracefully")
	}
}
