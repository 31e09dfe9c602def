package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/krasl809/tradedesk/internal/model"
)

// ErrStaleVersion means the row exists but the caller's version token
// is behind the stored one. The write has not touched anything.
var ErrStaleVersion = errors.New("stale version")

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			contract_number AS number,
			version,
			status,
			direction,
			seller_id,
			buyer_id,
			incoterm,
			currency,
			created_at,
			modified_date
		FROM contracts
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	contract.Items = items
	return &contract, nil
}

func (r *ContractRepository) listItems(ctx context.Context, contractID uuid.UUID) ([]model.ContractItem, error) {
	var items []model.ContractItem
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			contract_id,
			article_id,
			qty_ton,
			price,
			premium,
			pricing_mode
		FROM contract_items
		WHERE contract_id = ?
		ORDER BY id
	`, contractID).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// CreateContract inserts the contract with version 1; the server, not
// the client, assigns the token.
func (r *ContractRepository) CreateContract(ctx context.Context, contract model.Contract) (*model.Contract, error) {
	var saved model.Contract
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Raw(`
			INSERT INTO contracts (
				contract_number,
				version,
				status,
				direction,
				seller_id,
				buyer_id,
				incoterm,
				currency
			) VALUES (?, 1, ?, ?, ?, ?, ?, ?)
			RETURNING
				id,
				contract_number AS number,
				version,
				status,
				direction,
				seller_id,
				buyer_id,
				incoterm,
				currency,
				created_at,
				modified_date
		`,
			contract.Number,
			contract.Status,
			contract.Direction,
			contract.SellerID,
			contract.BuyerID,
			contract.Incoterm,
			contract.Currency,
		).Scan(&saved).Error
		if err != nil {
			return err
		}

		return insertItems(tx, saved.ID, contract.Items)
	})
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, saved.ID)
	if err != nil {
		return nil, err
	}
	saved.Items = items
	return &saved, nil
}

// UpdateContract writes the full mutable field set behind the version
// check: the UPDATE only matches when the stored version equals the one
// the client presented, which is the sole serialization point for
// concurrent editors.
func (r *ContractRepository) UpdateContract(ctx context.Context, contract model.Contract, expectedVersion int64) (int64, time.Time, error) {
	var result struct {
		Version      int64
		ModifiedDate time.Time
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Raw(`
			UPDATE contracts
			SET
				seller_id = ?,
				buyer_id = ?,
				incoterm = ?,
				currency = ?,
				version = version + 1,
				modified_date = NOW()
			WHERE id = ? AND version = ?
			RETURNING version, modified_date
		`,
			contract.SellerID,
			contract.BuyerID,
			contract.Incoterm,
			contract.Currency,
			contract.ID,
			expectedVersion,
		).Scan(&result).Error
		if err != nil {
			return err
		}
		if result.Version == 0 {
			// No row matched: distinguish missing from stale.
			var exists bool
			if err := tx.Raw(`SELECT EXISTS (SELECT 1 FROM contracts WHERE id = ?)`, contract.ID).Scan(&exists).Error; err != nil {
				return err
			}
			if !exists {
				return gorm.ErrRecordNotFound
			}
			return ErrStaleVersion
		}

		if err := tx.Exec(`DELETE FROM contract_items WHERE contract_id = ?`, contract.ID).Error; err != nil {
			return err
		}
		return insertItems(tx, contract.ID, contract.Items)
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return result.Version, result.ModifiedDate, nil
}

// UpdateStatus moves the contract through its lifecycle behind the same
// version check as field writes.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ContractStatus, expectedVersion int64) (int64, error) {
	var result struct {
		Version int64
	}
	err := r.db.WithContext(ctx).Raw(`
		UPDATE contracts
		SET status = ?, version = version + 1, modified_date = NOW()
		WHERE id = ? AND version = ?
		RETURNING version
	`, status, id, expectedVersion).Scan(&result).Error
	if err != nil {
		return 0, err
	}
	if result.Version == 0 {
		var exists bool
		if err := r.db.WithContext(ctx).Raw(`SELECT EXISTS (SELECT 1 FROM contracts WHERE id = ?)`, id).Scan(&exists).Error; err != nil {
			return 0, err
		}
		if !exists {
			return 0, gorm.ErrRecordNotFound
		}
		return 0, ErrStaleVersion
	}
	return result.Version, nil
}

func (r *ContractRepository) ListTransactions(ctx context.Context, contractID uuid.UUID) ([]model.FinancialTransaction, error) {
	// Recorded order; the ledger does its own stable date sort.
	var txns []model.FinancialTransaction
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			contract_id,
			type,
			transaction_date,
			amount,
			is_credit,
			reference,
			linked_transaction_id,
			created_at
		FROM financial_transactions
		WHERE contract_id = ?
		ORDER BY created_at ASC
	`, contractID).Scan(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *ContractRepository) ListPartialPricing(ctx context.Context, contractID uuid.UUID) ([]model.PartialPricing, error) {
	var fixations []model.PartialPricing
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			pp.id,
			pp.item_id,
			pp.qty_priced,
			pp.price,
			pp.pricing_date,
			pp.reference
		FROM partial_pricing pp
		JOIN contract_items ci ON ci.id = pp.item_id
		WHERE ci.contract_id = ?
		ORDER BY pp.pricing_date ASC
	`, contractID).Scan(&fixations).Error
	if err != nil {
		return nil, err
	}
	return fixations, nil
}

// InsertPartialPricing records a fixation and bumps the contract
// version in one transaction, so a concurrent fixation against the
// same version loses cleanly.
func (r *ContractRepository) InsertPartialPricing(ctx context.Context, contractID uuid.UUID, fixation model.PartialPricing, expectedVersion int64) (int64, error) {
	var result struct {
		Version int64
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Raw(`
			UPDATE contracts
			SET version = version + 1, modified_date = NOW()
			WHERE id = ? AND version = ?
			RETURNING version
		`, contractID, expectedVersion).Scan(&result).Error
		if err != nil {
			return err
		}
		if result.Version == 0 {
			var exists bool
			if err := tx.Raw(`SELECT EXISTS (SELECT 1 FROM contracts WHERE id = ?)`, contractID).Scan(&exists).Error; err != nil {
				return err
			}
			if !exists {
				return gorm.ErrRecordNotFound
			}
			return ErrStaleVersion
		}

		return tx.Exec(`
			INSERT INTO partial_pricing (id, item_id, qty_priced, price, pricing_date, reference)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			fixation.ID,
			fixation.ItemID,
			fixation.QtyPriced,
			fixation.Price,
			fixation.PricingDate,
			fixation.Reference,
		).Error
	})
	if err != nil {
		return 0, err
	}
	return result.Version, nil
}

func insertItems(tx *gorm.DB, contractID uuid.UUID, items []model.ContractItem) error {
	for _, item := range items {
		id := item.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if err := tx.Exec(`
			INSERT INTO contract_items (id, contract_id, article_id, qty_ton, price, premium, pricing_mode)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, contractID, item.ArticleID, item.QtyTon, item.Price, item.Premium, item.PricingMode).Error; err != nil {
			return err
		}
	}
	return nil
}
