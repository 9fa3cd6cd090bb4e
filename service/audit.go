package service

import (
	"context"

	log "github.com/sirupsen/logrus"

	"mise/models"
)

// AuditLog is the single entry point for writing credit transactions. Entries
// are written through the pool-backed repository after the primary mutation
// has committed: a failed audit write must never roll back or fail the
// balance change, so failures are logged and swallowed.
type AuditLog struct {
	txns CreditTransactionRepository
}

// NewAuditLog creates a new audit log writer
func NewAuditLog(txns CreditTransactionRepository) *AuditLog {
	return &AuditLog{txns: txns}
}

// Record appends the given transactions, best-effort
func (a *AuditLog) Record(ctx context.Context, txns ...*models.CreditTransaction) {
	for _, txn := range txns {
		if err := a.txns.Record(ctx, txn); err != nil {
			log.WithFields(log.Fields{
				"userID": txn.UserID,
				"reason": txn.Reason,
				"amount": txn.Amount,
			}).WithError(err).Warn("Failed to write credit transaction")
		}
	}
}
