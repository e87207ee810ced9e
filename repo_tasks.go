package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tasks is the staff review queue repository.
type Tasks interface {
	repository.Repository[*Task]

	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Task, error)
	ListOpen(ctx context.Context) ([]*Task, error)
	FindOpenForRelationship(ctx context.Context, relType TaskRelationshipType, relID uuid.UUID) (*Task, error)
	FindOpenForRelationshipTx(ctx context.Context, tx bun.IDB, relType TaskRelationshipType, relID uuid.UUID) (*Task, error)
}

type tasks struct {
	repository.Repository[*Task]
	db *bun.DB
}

var _ Tasks = (*tasks)(nil)

// NewTasksRepository wires the task repository.
func NewTasksRepository(db *bun.DB) Tasks {
	repo := repository.NewRepository[*Task](db, repository.ModelHandlers[*Task]{
		NewRecord: func() *Task { return &Task{} },
		GetID: func(t *Task) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Task, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})
	return &tasks{Repository: repo, db: db}
}

func (r *tasks) FindByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *tasks) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Task, error) {
	record := &Task{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withMeta(ErrTaskNotFound, map[string]any{"task_id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (r *tasks) ListOpen(ctx context.Context) ([]*Task, error) {
	var records []*Task
	err := r.db.NewSelect().Model(&records).
		Where("?TableAlias.status_code IN (?)", bun.In([]TaskStatus{TaskStatusOpen, TaskStatusHold})).
		Order("tsk.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *tasks) FindOpenForRelationship(ctx context.Context, relType TaskRelationshipType, relID uuid.UUID) (*Task, error) {
	return r.FindOpenForRelationshipTx(ctx, r.db, relType, relID)
}

func (r *tasks) FindOpenForRelationshipTx(ctx context.Context, tx bun.IDB, relType TaskRelationshipType, relID uuid.UUID) (*Task, error) {
	record := &Task{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.relationship_type = ?", relType).
		Where("?TableAlias.relationship_id = ?", relID).
		Where("?TableAlias.status_code IN (?)", bun.In([]TaskStatus{TaskStatusOpen, TaskStatusHold})).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}
