package repository

import (
	"context"

	"github.com/uwamba/edms/internal/db"
	"github.com/uwamba/edms/internal/models"
)

const ApprovalsCollection = "_dms_approval_processes"

type ApprovalRepo struct {
	store db.Store
}

func NewApprovalRepo(store db.Store) *ApprovalRepo {
	return &ApprovalRepo{store: store}
}

// EnsureIndexes makes formId unique: a form has at most one process.
func (r *ApprovalRepo) EnsureIndexes(ctx context.Context) error {
	return r.store.EnsureIndex(ctx, ApprovalsCollection, "formId", true)
}

func (r *ApprovalRepo) Create(ctx context.Context, proc *models.ApprovalProcess) (string, error) {
	doc, err := toDoc(proc)
	if err != nil {
		return "", err
	}
	return r.store.Insert(ctx, ApprovalsCollection, doc)
}

func (r *ApprovalRepo) FindByFormID(ctx context.Context, formID string) (*models.ApprovalProcess, error) {
	var p models.ApprovalProcess
	ok, err := findOne(ctx, r.store, ApprovalsCollection, db.Doc{"formId": formID}, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (r *ApprovalRepo) FindAll(ctx context.Context) ([]models.ApprovalProcess, error) {
	return findAll[models.ApprovalProcess](ctx, r.store, ApprovalsCollection, db.Doc{}, nil)
}

// UpdateSteps writes back the step list after a transition.
func (r *ApprovalRepo) UpdateSteps(ctx context.Context, proc *models.ApprovalProcess) error {
	doc, err := toDoc(proc)
	if err != nil {
		return err
	}
	return r.store.Update(ctx, ApprovalsCollection, proc.ID, db.Doc{
		"steps":     doc["steps"],
		"updatedAt": proc.UpdatedAt,
	})
}

func (r *ApprovalRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, ApprovalsCollection, id)
}
