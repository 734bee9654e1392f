// Package main initializes and starts the tourplan datastore server,
// setting up configuration, logging, the database connection,
// repositories, services, and HTTP handlers.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	nethttp "net/http"

	"github.com/samplerpa08-cpu/tourplan/internal/config"
	"github.com/samplerpa08-cpu/tourplan/internal/db"
	"github.com/samplerpa08-cpu/tourplan/internal/logger"
	"github.com/samplerpa08-cpu/tourplan/internal/repository"
	"github.com/samplerpa08-cpu/tourplan/internal/server/handler/http"
	"github.com/samplerpa08-cpu/tourplan/internal/service"
	"github.com/samplerpa08-cpu/tourplan/internal/week"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", orDefault(version, "N/A"))
	fmt.Printf("Build date: %s\n", orDefault(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Purge plans for weeks older than the retention window.
	db.StartRetentionCleaner(context.Background(), postgresDB,
		time.Hour,
		time.Duration(options.RetentionDays)*24*time.Hour,
		zapLogger,
	)

	// Initialize repositories.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	planRepo := repository.NewPostgresPlanRepository(postgresDB)
	overrideRepo := repository.NewPostgresOverrideRepository(postgresDB)

	// Initialize business-logic services.
	pins, err := service.NewPINCipher(options.SecretKey)
	if err != nil {
		zapLogger.Fatal("cannot init PIN cipher", zap.Error(err))
	}
	userService := service.NewUserService(userRepo, planRepo, pins)
	planService := service.NewPlanService(planRepo)
	overrideService := service.NewOverrideService(overrideRepo)

	// Seed the default admin so a fresh datastore is usable immediately.
	if err := seedAdmin(context.Background(), userService); err != nil {
		zapLogger.Fatal("cannot seed admin user", zap.Error(err))
	}

	// Create HTTP handlers for the datastore endpoints.
	usersHandler := &http.UsersHandler{UserService: userService}
	plansHandler := &http.PlansHandler{PlanService: planService}
	overrideHandler := &http.OverrideHandler{OverrideService: overrideService}

	// Build the router with middleware and routes.
	router := http.NewRouter(usersHandler, plansHandler, overrideHandler,
		options.AdminSecret, zapLogger)

	server := &nethttp.Server{
		Addr:    options.Port,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server",
		zap.String("addr", options.Port),
		zap.String("currentWeek", week.MustCompute(time.Now()).ID),
	)
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}

// seedAdmin creates the default admin/0000 account. An existing admin user
// is left untouched.
func seedAdmin(ctx context.Context, users *service.UserService) error {
	err := users.Add(ctx, "admin", "0000", true)
	if errors.Is(err, service.ErrExists) {
		return nil
	}
	return err
}

// orDefault returns s if it is non-empty, otherwise def. It stands in for
// cmp.Or, which requires Go 1.22.
func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
