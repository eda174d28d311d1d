package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the kitchen tables in dependency order. Each statement is
// idempotent so Migrate can run on every deploy.
//
// The two unique keys on the planning tables are the upsert conflict
// targets: one selection per member per slot per day, and one confirmed
// decision per family per slot per day.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             CHAR(36)     NOT NULL PRIMARY KEY,
		email          VARCHAR(255) NOT NULL,
		password_hash  VARCHAR(255) NOT NULL DEFAULT '',
		oauth_provider VARCHAR(32)  NOT NULL DEFAULT '',
		oauth_subject  VARCHAR(255) NOT NULL DEFAULT '',
		is_active      TINYINT(1)   NOT NULL DEFAULT 1,
		created_at     DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    CHAR(36)        NOT NULL,
		token_hash CHAR(64)        NOT NULL,
		expires_at DATETIME        NOT NULL,
		revoked_at DATETIME        NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		name        VARCHAR(100) NOT NULL,
		role        VARCHAR(16)  NOT NULL,
		avatar_url  VARCHAR(512) NOT NULL DEFAULT '',
		language    VARCHAR(8)   NOT NULL DEFAULT '',
		family_code VARCHAR(64)  NOT NULL,
		created_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_profiles_family (family_code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS meals (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		name        VARCHAR(200) NOT NULL,
		description VARCHAR(1000) NOT NULL DEFAULT '',
		category    VARCHAR(64)  NOT NULL DEFAULT '',
		image_url   VARCHAR(512) NOT NULL DEFAULT '',
		created_by  CHAR(36)     NOT NULL DEFAULT '',
		family_code VARCHAR(64)  NOT NULL,
		created_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_meals_family (family_code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS daily_meal_selections (
		id           CHAR(36)    NOT NULL PRIMARY KEY,
		user_id      CHAR(36)    NOT NULL,
		meal_id      CHAR(36)    NOT NULL,
		meal_date    DATE        NOT NULL,
		slot         VARCHAR(8)  NOT NULL,
		family_code  VARCHAR(64) NOT NULL,
		profile_data JSON        NULL,
		meal_data    JSON        NULL,
		UNIQUE KEY uq_selection_user_date_slot (user_id, meal_date, slot),
		KEY idx_selection_family_date (family_code, meal_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS confirmed_meals (
		id          CHAR(36)    NOT NULL PRIMARY KEY,
		meal_id     CHAR(36)    NOT NULL,
		meal_date   DATE        NOT NULL,
		slot        VARCHAR(8)  NOT NULL,
		ready_at    VARCHAR(5)  NOT NULL,
		family_code VARCHAR(64) NOT NULL,
		meal_data   JSON        NULL,
		UNIQUE KEY uq_confirmed_family_date_slot (family_code, meal_date, slot)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS inventory (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		item_name   VARCHAR(200) NOT NULL,
		quantity    INT UNSIGNED NOT NULL DEFAULT 0,
		unit        VARCHAR(32)  NOT NULL DEFAULT 'pcs',
		family_code VARCHAR(64)  NOT NULL,
		KEY idx_inventory_family (family_code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS shopping_cart (
		id           CHAR(36)     NOT NULL PRIMARY KEY,
		item_name    VARCHAR(200) NOT NULL,
		quantity     INT UNSIGNED NOT NULL DEFAULT 1,
		is_purchased TINYINT(1)   NOT NULL DEFAULT 0,
		family_code  VARCHAR(64)  NOT NULL,
		created_at   DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		KEY idx_cart_family (family_code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id           CHAR(36)    NOT NULL PRIMARY KEY,
		sender_id    CHAR(36)    NOT NULL,
		message      TEXT        NOT NULL,
		family_code  VARCHAR(64) NOT NULL,
		profile_data JSON        NULL,
		created_at   DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		KEY idx_chat_family_created (family_code, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
