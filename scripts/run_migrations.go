package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/safar/go-pos-register/internal/config"
	"github.com/safar/go-pos-register/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}
	direction := os.Args[1]

	dbCfg := config.LoadDatabase()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(context.Background(), &dbCfg)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	ran, err := database.Migrate(context.Background(), db, "migrations", direction, logger)
	if err != nil {
		logger.Fatal("migrate", zap.String("direction", direction), zap.Int("ran", ran), zap.Error(err))
	}
	logger.Info("migrations complete", zap.String("direction", direction), zap.Int("ran", ran))
}
