package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/grocery-pos/internal/domain"
)

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t domain.Transaction) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, kind, status, cashier_id, customer_id, original_transaction_id, total, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, string(t.Kind), string(t.Status), t.CashierID, nullIfEmpty(t.CustomerID),
		nullIfEmpty(t.OriginalTransactionID), t.Total, doc, t.CreatedAt)
	if isUniqueViolation(err) {
		return &domain.ConflictError{Resource: "transaction", Key: t.ID}
	}
	return err
}

func updateTransaction(ctx context.Context, tx pgx.Tx, t domain.Transaction) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE transactions SET status = $2, document = $3, updated_at = now() WHERE id = $1
	`, t.ID, string(t.Status), doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return domain.NotFound("transaction", t.ID)
	}
	return nil
}
