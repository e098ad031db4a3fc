package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/edupay/feepay/internal/events"
	"github.com/edupay/feepay/internal/helpers"
	"github.com/edupay/feepay/internal/queue"
	"github.com/edupay/feepay/internal/repository"
	"github.com/edupay/feepay/internal/worker"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type config struct {
	concurrency  int
	pendingGrace time.Duration
	db           helpers.DBConfig
	redisAddr    string
	kafkaBrokers []string
	worker       worker.Config
}

func newConfig() config {
	cfg := config{}

	cfg.concurrency = helpers.GetEnvAsInt("WORKER_CONCURRENCY", 2)
	cfg.pendingGrace = helpers.GetEnvAsDuration("PENDING_GRACE", 5*time.Minute)
	cfg.db.Host = helpers.GetEnvAsStr("DB_HOST", "postgres")
	cfg.db.Port = helpers.GetEnvAsStr("DB_PORT", "5432")
	cfg.db.User = helpers.GetEnvAsStr("DB_USER", "postgres")
	cfg.db.Password = helpers.GetEnvAsStr("DB_PASSWORD", "postgres")
	cfg.db.Name = helpers.GetEnvAsStr("DB_NAME", "feepay")
	cfg.redisAddr = helpers.GetEnvAsStr("REDIS_ADDR", "redis:6379")
	if brokers := helpers.GetEnvAsStr("KAFKA_BROKERS", ""); brokers != "" {
		cfg.kafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.worker = worker.Config{
		MaxAttempts:  helpers.GetEnvAsInt("JOB_MAX_ATTEMPTS", 5),
		BaseBackoff:  helpers.GetEnvAsDuration("JOB_BASE_BACKOFF", 200*time.Millisecond),
		JobTimeout:   helpers.GetEnvAsDuration("JOB_TIMEOUT", 30*time.Second),
		ReclaimAfter: helpers.GetEnvAsDuration("JOB_RECLAIM_AFTER", time.Minute),
	}
	return cfg
}

func main() {
	godotenv.Load()

	cfg := newConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	db, err := helpers.OpenDB(cfg.db, logger)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}
	q := queue.NewRedis(rdb, queue.FinalizePayment)
	defer q.Close()

	var pub events.Publisher = events.Nop{}
	if len(cfg.kafkaBrokers) > 0 {
		kafka, err := events.NewKafka(cfg.kafkaBrokers, logger)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		pub = kafka
	}
	defer pub.Close()

	repo := repository.NewPaymentRepository(db)
	w := worker.New(repo, q, pub, logger, cfg.worker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Re-derive finalization jobs for payments whose enqueue was lost
	// between commit and queue push.
	if _, err := w.RequeuePending(ctx, cfg.pendingGrace); err != nil {
		logger.Error("pending sweep failed", "error", err)
	}

	logger.Info("worker starting", "concurrency", cfg.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < cfg.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				logger.Error("worker loop exited", "error", err)
			}
		}()
	}
	wg.Wait()

	logger.Info("worker stopped")
}
