package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mise/database"
	"mise/models"
)

// CreditTransactionRepository implements the CreditTransactionRepository
// interface. The table is append-only.
type CreditTransactionRepository struct {
	q queryable
}

// NewCreditTransactionRepository creates a new credit transaction repository
func NewCreditTransactionRepository(db *database.DB) *CreditTransactionRepository {
	return &CreditTransactionRepository{q: db.Pool}
}

// Record appends an audit entry
func (r *CreditTransactionRepository) Record(ctx context.Context, txn *models.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (user_id, amount, credit_type, reason, extraction_job_id, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		txn.UserID,
		txn.Amount,
		txn.CreditType,
		txn.Reason,
		txn.ExtractionJobID,
		txn.BalanceAfter,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record credit transaction for user %s: %w", txn.UserID, err)
	}
	return nil
}

// GetRecentByUser returns a user's most recent transactions, newest first
func (r *CreditTransactionRepository) GetRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, credit_type, reason, extraction_job_id, balance_after, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var txns []*models.CreditTransaction
	for rows.Next() {
		var txn models.CreditTransaction
		err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.Amount,
			&txn.CreditType,
			&txn.Reason,
			&txn.ExtractionJobID,
			&txn.BalanceAfter,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit transaction: %w", err)
		}
		txns = append(txns, &txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credit transactions: %w", err)
	}

	return txns, nil
}
