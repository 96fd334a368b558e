package repository

import (
	"context"

	"github.com/uwamba/edms/internal/db"
	"github.com/uwamba/edms/internal/models"
)

const DocumentsCollection = "_dms_documents"

type DocumentRepo struct {
	store db.Store
}

func NewDocumentRepo(store db.Store) *DocumentRepo {
	return &DocumentRepo{store: store}
}

func (r *DocumentRepo) EnsureIndexes(ctx context.Context) error {
	if err := r.store.EnsureIndex(ctx, DocumentsCollection, "formId", false); err != nil {
		return err
	}
	return r.store.EnsureIndex(ctx, DocumentsCollection, "submissionId", false)
}

func (r *DocumentRepo) Create(ctx context.Context, doc *models.Document) (string, error) {
	d, err := toDoc(doc)
	if err != nil {
		return "", err
	}
	return r.store.Insert(ctx, DocumentsCollection, d)
}

func (r *DocumentRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	ok, err := findOne(ctx, r.store, DocumentsCollection, db.Doc{"_id": id}, &d)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}

func (r *DocumentRepo) FindAll(ctx context.Context, skip, limit int) ([]models.Document, int, error) {
	total, err := r.store.Count(ctx, DocumentsCollection, db.Doc{})
	if err != nil {
		return nil, 0, err
	}
	docs, err := findAll[models.Document](ctx, r.store, DocumentsCollection, db.Doc{}, &db.FindOptions{
		Sort:  "createdAt",
		Desc:  true,
		Skip:  skip,
		Limit: limit,
	})
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepo) FindBySubmission(ctx context.Context, submissionID string) ([]models.Document, error) {
	return findAll[models.Document](ctx, r.store, DocumentsCollection, db.Doc{"submissionId": submissionID}, nil)
}

// SetSubmission links an uploaded document to the submission it arrived with.
func (r *DocumentRepo) SetSubmission(ctx context.Context, id, submissionID string) error {
	return r.store.Update(ctx, DocumentsCollection, id, db.Doc{"submissionId": submissionID})
}

func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, DocumentsCollection, id)
}

func (r *DocumentRepo) PutBlob(ctx context.Context, key string, data []byte, contentType string) error {
	return r.store.PutBlob(ctx, key, data, contentType)
}

func (r *DocumentRepo) GetBlob(ctx context.Context, key string) ([]byte, error) {
	return r.store.GetBlob(ctx, key)
}

func (r *DocumentRepo) DeleteBlob(ctx context.Context, key string) error {
	return r.store.DeleteBlob(ctx, key)
}

func (r *DocumentRepo) CountAll(ctx context.Context) (int, error) {
	return r.store.Count(ctx, DocumentsCollection, db.Doc{})
}
