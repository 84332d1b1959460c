package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

// Repository reads and updates outbox_events. Every method takes the
// caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

func pending(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.OutboxEvent{}).Where("published_at IS NULL")
}

// FetchUnpublishedTx locks the oldest pending rows that have attempts left
// and are due at now. SKIP LOCKED lets several publishers share the table.
func (r *Repository) FetchUnpublishedTx(tx *gorm.DB, limit, maxAttempts int, now time.Time) ([]models.OutboxEvent, error) {
	q := pending(tx).
		Where("attempt_count < ?", maxAttempts).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now.UTC()).
		Order("created_at ASC, id ASC").
		Limit(limit)
	var rows []models.OutboxEvent
	return rows, db.ForUpdate(q, "SKIP LOCKED").Find(&rows).Error
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{"published_at": time.Now().UTC(), "last_error": nil})
}

// MarkFailedTx records err, spends one attempt and hides the row from
// fetches until retryAt.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, retryAt time.Time) error {
	return r.update(tx, id, map[string]any{
		"last_error":      err.Error(),
		"attempt_count":   gorm.Expr("attempt_count + 1"),
		"next_attempt_at": retryAt.UTC(),
	})
}

// MarkTerminalTx jumps attempt_count to the ceiling so the row is never
// fetched again; it stays unpublished for inspection.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	return r.update(tx, id, map[string]any{"last_error": err.Error(), "attempt_count": terminalAttempts})
}

func (r *Repository) CountPending(tx *gorm.DB) (int64, error) {
	var n int64
	return n, pending(tx).Count(&n).Error
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, cols map[string]any) error {
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(cols).Error
}
