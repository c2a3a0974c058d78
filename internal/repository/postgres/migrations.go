package postgres

import (
	"context"
	"fmt"
)

// Имена ограничений, по которым распознаются нарушения уникальности
const (
	constraintAgencyName  = "agencies_name_key"
	constraintSheetNumber = "certificates_sheet_number_key"
	constraintUserEmail   = "users_email_key"
)

// migrations - идемпотентная схема, применяется при старте по порядку
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS agencies (
		id           UUID PRIMARY KEY,
		name         TEXT NOT NULL,
		code         TEXT NOT NULL DEFAULT '',
		address      TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT '',
		phone        TEXT NOT NULL DEFAULT '',
		stock_yellow INTEGER NOT NULL DEFAULT 0,
		stock_red    INTEGER NOT NULL DEFAULT 0,
		stock_green  INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT agencies_name_key UNIQUE (name),
		CONSTRAINT agencies_stock_yellow_check CHECK (stock_yellow >= 0),
		CONSTRAINT agencies_stock_red_check CHECK (stock_red >= 0),
		CONSTRAINT agencies_stock_green_check CHECK (stock_green >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		name          TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'USER',
		agency_id     UUID REFERENCES agencies (id),
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT users_email_key UNIQUE (email),
		CONSTRAINT users_role_check CHECK (role IN ('ADMIN', 'USER'))
	)`,
	`CREATE TABLE IF NOT EXISTS certificates (
		id             UUID PRIMARY KEY,
		agency_id      UUID NOT NULL REFERENCES agencies (id),
		creator_id     UUID NOT NULL,
		sheet_number   BIGINT NOT NULL,
		sheet_type     TEXT NOT NULL,
		policy_number  TEXT NOT NULL,
		holder         TEXT NOT NULL,
		address        TEXT NOT NULL DEFAULT '',
		vehicle_id     TEXT NOT NULL,
		brand          TEXT NOT NULL DEFAULT '',
		usage          TEXT NOT NULL DEFAULT '',
		seats          INTEGER NOT NULL DEFAULT 0,
		effective_date DATE NOT NULL,
		expiry_date    DATE NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		edited_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT certificates_sheet_number_key UNIQUE (sheet_number),
		CONSTRAINT certificates_sheet_type_check CHECK (sheet_type IN ('JAUNE', 'ROUGE', 'VERT')),
		CONSTRAINT certificates_seats_check CHECK (seats >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_certificates_vehicle_expiry ON certificates (vehicle_id, expiry_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_certificates_agency ON certificates (agency_id)`,
	`CREATE INDEX IF NOT EXISTS idx_certificates_expiry ON certificates (expiry_date)`,
	`CREATE INDEX IF NOT EXISTS idx_users_agency ON users (agency_id)`,
}

// Migrate применяет схему
func Migrate(ctx context.Context, db DBTX) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
