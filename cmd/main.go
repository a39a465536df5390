package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/farellandr/qrticket/config"
	"github.com/farellandr/qrticket/internal/logger"
	"github.com/farellandr/qrticket/internal/server"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	if err := server.Start(cfg, zapLogger); err != nil {
		zapLogger.Fatal("server failed to start", zap.Error(err))
	}
}
