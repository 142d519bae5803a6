package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-paylink/app/entity"
)

type PanErrorRepository struct {
	db DBTX
}

func NewPanErrorRepository(db DBTX) *PanErrorRepository {
	return &PanErrorRepository{db: db}
}

// Upsert keeps one row per card prefix holding the latest decline code.
func (r *PanErrorRepository) Upsert(ctx context.Context, panError *entity.PanError) error {
	query := `
		INSERT INTO pan_errors (pan, status, bank_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			bank_name = COALESCE(VALUES(bank_name), bank_name),
			updated_at = VALUES(updated_at)
	`

	_, err := r.db.ExecContext(ctx, query,
		panError.PAN,
		panError.Status,
		nullableStringValue(panError.BankName),
		panError.CreatedAt,
		panError.UpdatedAt,
	)
	return err
}
