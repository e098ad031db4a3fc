package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edupay/feepay/internal/events"
	"github.com/edupay/feepay/internal/helpers"
	"github.com/edupay/feepay/internal/queue"
	"github.com/edupay/feepay/internal/repository"
	"github.com/edupay/feepay/internal/service"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func main() {
	godotenv.Load()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	app := newApplication()

	db, err := helpers.OpenDB(app.config.db, app.logger)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: app.config.redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}
	q := queue.NewRedis(rdb, queue.FinalizePayment)
	defer q.Close()

	var pub events.Publisher = events.Nop{}
	if len(app.config.kafkaBrokers) > 0 {
		kafka, err := events.NewKafka(app.config.kafkaBrokers, app.logger)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		pub = kafka
	}
	defer pub.Close()

	app.paymentService = service.NewPaymentService(
		repository.NewPaymentRepository(db), q, pub, app.logger)
	app.userService = service.NewUserService(repository.NewUserRepository(db))

	server := &http.Server{
		Addr:         ":" + app.config.port,
		Handler:      app.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Printf("Server listening on :%s (ReadTimeout=%s WriteTimeout=%s IdleTimeout=%s)",
			app.config.port, server.ReadTimeout, server.WriteTimeout, server.IdleTimeout)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}

	case sig := <-quit:
		log.Printf("[shutdown] signal received: %v — beginning graceful shutdown", sig)

		ctx, cancel := context.WithTimeout(context.Background(), app.config.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("[shutdown] forced close: %v", err)
			server.Close()
		}
	}
}
