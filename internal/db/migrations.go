package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_status') THEN
			CREATE TYPE contract_status AS ENUM ('DRAFT', 'PRICING_PENDING', 'POSTED', 'COMPLETED', 'CANCELLED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_direction') THEN
			CREATE TYPE contract_direction AS ENUM ('EXPORT', 'IMPORT');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'transaction_type') THEN
			CREATE TYPE transaction_type AS ENUM ('INVOICE', 'PAYMENT', 'PRICING_ADJUSTMENT');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_number VARCHAR(64) NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		status contract_status NOT NULL DEFAULT 'DRAFT',
		direction contract_direction NOT NULL,
		seller_id UUID,
		buyer_id UUID,
		incoterm VARCHAR(16),
		currency VARCHAR(8) NOT NULL DEFAULT 'USD',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		modified_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contract_number ON contracts (contract_number);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts (status);`,
	`CREATE TABLE IF NOT EXISTS contract_items (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		article_id UUID NOT NULL,
		qty_ton NUMERIC(18,3) NOT NULL,
		price NUMERIC(18,4) NOT NULL DEFAULT 0,
		premium NUMERIC(18,4) NOT NULL DEFAULT 0,
		pricing_mode VARCHAR(16) NOT NULL DEFAULT 'FIXED'
	);`,
	`CREATE INDEX IF NOT EXISTS idx_contract_items_contract_id ON contract_items (contract_id);`,
	`CREATE TABLE IF NOT EXISTS partial_pricing (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		item_id UUID NOT NULL REFERENCES contract_items(id) ON DELETE CASCADE,
		qty_priced NUMERIC(18,3) NOT NULL,
		price NUMERIC(18,4) NOT NULL,
		pricing_date DATE NOT NULL,
		reference VARCHAR(128)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_partial_pricing_item_id ON partial_pricing (item_id);`,
	`CREATE TABLE IF NOT EXISTS financial_transactions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id),
		type transaction_type NOT NULL,
		transaction_date DATE NOT NULL,
		amount NUMERIC(18,2) NOT NULL CHECK (amount >= 0),
		is_credit BOOLEAN NOT NULL DEFAULT FALSE,
		reference VARCHAR(128),
		linked_transaction_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_financial_transactions_contract_id ON financial_transactions (contract_id);`,
	`CREATE TABLE IF NOT EXISTS charter_items (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		vessel_name VARCHAR(128) NOT NULL,
		freight_rate NUMERIC(18,4) NOT NULL DEFAULT 0,
		laycan_start DATE,
		laycan_end DATE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_charter_items_contract_id ON charter_items (contract_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
