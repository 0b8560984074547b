package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the raffle tables when they do not exist yet.  Events,
// guests and attendances are owned by the check-in side of the system;
// they are created here only so a fresh database is usable.
//
// raffle_entries.live_key is NULL for cancelled rows, so the unique key
// allows any number of cancelled entries but only one live entry per
// (prize, guest).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		status ENUM('active','cancelled','finished') NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS guests (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT UNSIGNED NOT NULL,
		full_name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NULL,
		employee_number VARCHAR(64) NULL,
		company VARCHAR(255) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_guests_event (event_id),
		CONSTRAINT fk_guests_event FOREIGN KEY (event_id) REFERENCES events(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS attendances (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		guest_id BIGINT UNSIGNED NOT NULL,
		scanned_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_attendances_guest (guest_id),
		CONSTRAINT fk_attendances_guest FOREIGN KEY (guest_id) REFERENCES guests(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS prizes (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NULL,
		category VARCHAR(100) NULL,
		stock INT NOT NULL DEFAULT 0,
		initial_stock INT NOT NULL DEFAULT 0,
		active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_prizes_event_name (event_id, name),
		CONSTRAINT fk_prizes_event FOREIGN KEY (event_id) REFERENCES events(id),
		CONSTRAINT chk_prizes_stock CHECK (stock >= 0 AND stock <= initial_stock)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS raffle_entries (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT UNSIGNED NOT NULL,
		guest_id BIGINT UNSIGNED NOT NULL,
		prize_id BIGINT UNSIGNED NOT NULL,
		status ENUM('pending','won','lost','cancelled') NOT NULL DEFAULT 'pending',
		position INT NULL,
		participated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		drawn_at DATETIME NULL,
		metadata JSON NULL,
		live_key TINYINT AS (IF(status = 'cancelled', NULL, 1)) STORED,
		UNIQUE KEY uq_entries_live (prize_id, guest_id, live_key),
		KEY idx_entries_prize_status (prize_id, status),
		KEY idx_entries_event_status (event_id, status),
		CONSTRAINT fk_entries_guest FOREIGN KEY (guest_id) REFERENCES guests(id),
		CONSTRAINT fk_entries_prize FOREIGN KEY (prize_id) REFERENCES prizes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS raffle_logs (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT UNSIGNED NOT NULL,
		prize_id BIGINT UNSIGNED NOT NULL,
		guest_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NULL,
		batch_id CHAR(36) NOT NULL,
		raffle_type ENUM('public','general') NOT NULL,
		confirmed TINYINT(1) NOT NULL DEFAULT 1,
		replaced_by BIGINT UNSIGNED NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_logs_event_type (event_id, raffle_type, confirmed),
		KEY idx_logs_batch (batch_id),
		CONSTRAINT fk_logs_prize FOREIGN KEY (prize_id) REFERENCES prizes(id),
		CONSTRAINT fk_logs_guest FOREIGN KEY (guest_id) REFERENCES guests(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
