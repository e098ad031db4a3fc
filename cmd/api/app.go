package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/edupay/feepay/internal/helpers"
	"github.com/edupay/feepay/internal/service"
)

type config struct {
	port            string
	env             string
	shutdownTimeout time.Duration
	db              helpers.DBConfig
	redisAddr       string
	kafkaBrokers    []string
}

type application struct {
	config         config
	logger         *slog.Logger
	paymentService *service.PaymentService
	userService    *service.UserService
}

func newApplication() *application {
	cfg := config{}

	cfg.port = helpers.GetEnvAsStr("PORT", "8080")
	cfg.env = helpers.GetEnvAsStr("ENV", "development")
	cfg.shutdownTimeout = helpers.GetEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	cfg.db.Host = helpers.GetEnvAsStr("DB_HOST", "postgres")
	cfg.db.Port = helpers.GetEnvAsStr("DB_PORT", "5432")
	cfg.db.User = helpers.GetEnvAsStr("DB_USER", "postgres")
	cfg.db.Password = helpers.GetEnvAsStr("DB_PASSWORD", "postgres")
	cfg.db.Name = helpers.GetEnvAsStr("DB_NAME", "feepay")
	cfg.redisAddr = helpers.GetEnvAsStr("REDIS_ADDR", "redis:6379")
	if brokers := helpers.GetEnvAsStr("KAFKA_BROKERS", ""); brokers != "" {
		cfg.kafkaBrokers = strings.Split(brokers, ",")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	return &application{
		config: cfg,
		logger: logger,
	}
}
