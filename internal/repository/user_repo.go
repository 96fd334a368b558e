package repository

import (
	"context"

	"github.com/uwamba/edms/internal/db"
	"github.com/uwamba/edms/internal/models"
)

const UsersCollection = "_dms_users"

type UserRepo struct {
	store db.Store
}

func NewUserRepo(store db.Store) *UserRepo {
	return &UserRepo{store: store}
}

func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	return r.store.EnsureIndex(ctx, UsersCollection, "email", true)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	ok, err := findOne(ctx, r.store, UsersCollection, db.Doc{"email": email}, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	ok, err := findOne(ctx, r.store, UsersCollection, db.Doc{"_id": id}, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindAll(ctx context.Context) ([]models.User, error) {
	return findAll[models.User](ctx, r.store, UsersCollection, db.Doc{}, &db.FindOptions{Sort: "email"})
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) (string, error) {
	doc, err := toDoc(user)
	if err != nil {
		return "", err
	}
	return r.store.Insert(ctx, UsersCollection, doc)
}

func (r *UserRepo) Update(ctx context.Context, id string, user *models.User) error {
	doc, err := toDoc(user)
	if err != nil {
		return err
	}
	return r.store.Update(ctx, UsersCollection, id, doc)
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, UsersCollection, id)
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, UsersCollection, db.Doc{})
}
