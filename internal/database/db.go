package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSN builds a MySQL DSN with parseTime=true and loc=UTC so DATETIME
// columns scan into UTC time.Time values.
func DSN(user, pass, host, port, name string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	return OpenDSN(DSN(user, pass, host, port, name))
}

// OpenDSN is Open for a ready-made DSN.
func OpenDSN(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// schema is applied in order by EnsureSchema.  seat_occupancy's primary
// key is what makes double-booking impossible at the storage level:
// a seat of a showtime can have at most one row.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id            VARCHAR(64)  NOT NULL PRIMARY KEY,
		user_id       VARCHAR(64)  NOT NULL,
		show_id       VARCHAR(64)  NOT NULL,
		showtime_id   VARCHAR(64)  NOT NULL,
		total_amount  BIGINT       NOT NULL,
		status        VARCHAR(16)  NOT NULL,
		created_at    DATETIME(6)  NOT NULL,
		expires_at    DATETIME(6)  NOT NULL,
		updated_at    DATETIME(6)  NOT NULL,
		payment_ref   VARCHAR(128) NULL,
		cancel_reason VARCHAR(32)  NULL,
		INDEX idx_bookings_user (user_id, created_at),
		INDEX idx_bookings_expiry (status, expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id VARCHAR(64) NOT NULL,
		position   INT         NOT NULL,
		seat_id    VARCHAR(8)  NOT NULL,
		tier       VARCHAR(16) NOT NULL,
		price      BIGINT      NOT NULL,
		PRIMARY KEY (booking_id, position)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS seat_occupancy (
		showtime_id VARCHAR(64) NOT NULL,
		seat_id     VARCHAR(8)  NOT NULL,
		booking_id  VARCHAR(64) NOT NULL,
		PRIMARY KEY (showtime_id, seat_id),
		INDEX idx_occupancy_booking (booking_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS receipts (
		id             VARCHAR(64)  NOT NULL PRIMARY KEY,
		booking_id     VARCHAR(64)  NOT NULL,
		user_id        VARCHAR(64)  NOT NULL,
		amount         BIGINT       NOT NULL,
		payment_method VARCHAR(32)  NOT NULL,
		transaction_id VARCHAR(128) NOT NULL,
		issued_at      DATETIME(6)  NOT NULL,
		show_title     VARCHAR(255) NOT NULL,
		showtime       VARCHAR(64)  NOT NULL,
		seats          TEXT         NOT NULL,
		UNIQUE KEY uq_receipts_booking (booking_id),
		INDEX idx_receipts_user (user_id, issued_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the booking tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
