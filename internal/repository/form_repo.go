package repository

import (
	"context"

	"github.com/uwamba/edms/internal/db"
	"github.com/uwamba/edms/internal/models"
)

const FormsCollection = "_dms_forms"

type FormRepo struct {
	store db.Store
}

func NewFormRepo(store db.Store) *FormRepo {
	return &FormRepo{store: store}
}

func (r *FormRepo) EnsureIndexes(ctx context.Context) error {
	return r.store.EnsureIndex(ctx, FormsCollection, "title", false)
}

func (r *FormRepo) Create(ctx context.Context, form *models.Form) (string, error) {
	doc, err := toDoc(form)
	if err != nil {
		return "", err
	}
	return r.store.Insert(ctx, FormsCollection, doc)
}

func (r *FormRepo) FindAll(ctx context.Context) ([]models.Form, error) {
	return findAll[models.Form](ctx, r.store, FormsCollection, db.Doc{}, &db.FindOptions{Sort: "createdAt", Desc: true})
}

func (r *FormRepo) FindByID(ctx context.Context, id string) (*models.Form, error) {
	var f models.Form
	ok, err := findOne(ctx, r.store, FormsCollection, db.Doc{"_id": id}, &f)
	if err != nil || !ok {
		return nil, err
	}
	return &f, nil
}

func (r *FormRepo) Update(ctx context.Context, id string, form *models.Form) error {
	doc, err := toDoc(form)
	if err != nil {
		return err
	}
	return r.store.Update(ctx, FormsCollection, id, doc)
}

func (r *FormRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, FormsCollection, id)
}

func (r *FormRepo) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, FormsCollection, db.Doc{})
}
