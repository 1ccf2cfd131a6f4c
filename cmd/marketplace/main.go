package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/app"
	"github.com/vladislavdragonenkov/marketplace/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unsupported log format %q", format)
	}

	if strings.TrimSpace(level) == "" {
		log.SetLevel(log.InfoLevel)
		return nil
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// loadDotEnv подхватывает .env, если он есть. Уже заданные переменные не перезаписываются.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func main() {
	if err := loadDotEnv(".env"); err != nil {
		log.WithError(err).Fatal("не удалось прочитать .env")
	}
	if err := setupLogger(os.Getenv("MARKETPLACE_LOG_LEVEL"), os.Getenv("MARKETPLACE_LOG_FORMAT")); err != nil {
		log.WithError(err).Fatal("некорректные настройки логирования")
	}

	cfg, err := app.ConfigFromEnv(os.LookupEnv)
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	buildVersion, buildCommit, buildDate := version.Info()
	log.WithFields(log.Fields{
		"version":      buildVersion,
		"commit":       buildCommit,
		"build_date":   buildDate,
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"instance_id":  cfg.InstanceID,
	}).Info("запускаем marketplace")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("marketplace остановлен")
}
