package repository

import (
	"context"

	"github.com/uwamba/edms/internal/db"
	"github.com/uwamba/edms/internal/models"
)

const SubmissionsCollection = "_dms_submissions"

type SubmissionRepo struct {
	store db.Store
}

func NewSubmissionRepo(store db.Store) *SubmissionRepo {
	return &SubmissionRepo{store: store}
}

func (r *SubmissionRepo) EnsureIndexes(ctx context.Context) error {
	if err := r.store.EnsureIndex(ctx, SubmissionsCollection, "formId", false); err != nil {
		return err
	}
	return r.store.EnsureIndex(ctx, SubmissionsCollection, "createdAt", false)
}

func (r *SubmissionRepo) Create(ctx context.Context, sub *models.Submission) (string, error) {
	doc, err := toDoc(sub)
	if err != nil {
		return "", err
	}
	return r.store.Insert(ctx, SubmissionsCollection, doc)
}

func (r *SubmissionRepo) FindByFormID(ctx context.Context, formID string, skip, limit int) ([]models.Submission, int, error) {
	query := db.Doc{"formId": formID}
	total, err := r.store.Count(ctx, SubmissionsCollection, query)
	if err != nil {
		return nil, 0, err
	}
	subs, err := findAll[models.Submission](ctx, r.store, SubmissionsCollection, query, &db.FindOptions{
		Sort:  "createdAt",
		Desc:  true,
		Skip:  skip,
		Limit: limit,
	})
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// FindAll returns the submissions matching filter, newest first.
func (r *SubmissionRepo) FindAll(ctx context.Context, filter db.Doc) ([]models.Submission, error) {
	return findAll[models.Submission](ctx, r.store, SubmissionsCollection, filter, &db.FindOptions{Sort: "createdAt", Desc: true})
}

func (r *SubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	var s models.Submission
	ok, err := findOne(ctx, r.store, SubmissionsCollection, db.Doc{"_id": id}, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, SubmissionsCollection, id)
}

func (r *SubmissionRepo) CountByFormID(ctx context.Context, formID string) (int, error) {
	return r.store.Count(ctx, SubmissionsCollection, db.Doc{"formId": formID})
}

func (r *SubmissionRepo) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, SubmissionsCollection, db.Doc{})
}
