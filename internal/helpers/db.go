package helpers

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func OpenDB(cfg DBConfig, logger *slog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name,
	)

	var db *sql.DB
	var err error
	for i := 0; i < 5; i++ {
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
		}
		logger.Info("waiting for database", "attempt", i+1, "of", 5)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("could not reach database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	logger.Info("database connection established")

	if err := RunMigrations(db, logger); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates tables, indexes, and seed rows idempotently.
//
// The paid_on column is the payment date truncated to the calendar day; the
// unique index on (payer_id, paid_on) is what blocks duplicate same-day
// charges.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         BIGSERIAL     PRIMARY KEY,
			name       VARCHAR(255)  NOT NULL,
			email      VARCHAR(255)  NOT NULL UNIQUE,
			balance    NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at TIMESTAMP     NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP     NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id         BIGSERIAL     PRIMARY KEY,
			payer_id   BIGINT        NOT NULL REFERENCES users(id),
			amount     NUMERIC(20,2) NOT NULL CHECK (amount > 0),
			method     VARCHAR(50)   NOT NULL,
			status     VARCHAR(20)   NOT NULL DEFAULT 'pending',
			paid_on    DATE          NOT NULL DEFAULT CURRENT_DATE,
			created_at TIMESTAMP     NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_payer_paid_on
			ON payments(payer_id, paid_on)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status
			ON payments(status)`,
		`INSERT INTO users (id, name, email, balance) VALUES
			(1, 'Amina Yusuf',  'amina@example.com',  1000.00),
			(2, 'Daniel Okoye', 'daniel@example.com',  500.00),
			(3, 'Grace Mwangi', 'grace@example.com',   750.00)
			ON CONFLICT (id) DO NOTHING`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	logger.Info("migrations completed")
	return nil
}
