package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auditor appends one AuditRecord per mutating service call, inside the same
// transaction as the mutation. History is append-only keyed by
// (entity_type, entity_id, version).
type Auditor struct {
	db     *bun.DB
	now    func() time.Time
	logger Logger
}

// AuditorOption customizes Auditor construction.
type AuditorOption func(*Auditor)

// WithAuditorClock injects a custom clock (useful for tests).
func WithAuditorClock(clock func() time.Time) AuditorOption {
	return func(a *Auditor) {
		if clock != nil {
			a.now = clock
		}
	}
}

// WithAuditorLogger overrides the logger.
func WithAuditorLogger(logger Logger) AuditorOption {
	return func(a *Auditor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuditor wires the audit writer.
func NewAuditor(db *bun.DB, opts ...AuditorOption) *Auditor {
	a := &Auditor{
		db:     db,
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RecordTx appends an audit row for the given entity mutation. The version
// is the next integer after the entity's current history tail.
func (a *Auditor) RecordTx(ctx context.Context, tx bun.IDB, entityType string, entityID uuid.UUID, action string, actor ActorRef, snapshot map[string]any) error {
	var current int64
	err := tx.NewSelect().
		ColumnExpr("COALESCE(MAX(version), 0)").
		Model((*AuditRecord)(nil)).
		Where("entity_type = ?", entityType).
		Where("entity_id = ?", entityID).
		Scan(ctx, &current)
	if err != nil {
		return err
	}

	now := a.now()
	record := &AuditRecord{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Version:    current + 1,
		Action:     action,
		ActorID:    actor.ID,
		Snapshot:   snapshot,
		CreatedAt:  &now,
	}
	_, err = tx.NewInsert().Model(record).Exec(ctx)
	return err
}

// Record appends outside any caller transaction.
func (a *Auditor) Record(ctx context.Context, entityType string, entityID uuid.UUID, action string, actor ActorRef, snapshot map[string]any) error {
	return a.RecordTx(ctx, a.db, entityType, entityID, action, actor, snapshot)
}
