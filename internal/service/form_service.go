package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/uwamba/edms/internal/formengine"
	"github.com/uwamba/edms/internal/models"
	"github.com/uwamba/edms/internal/repository"
)

type FormService struct {
	forms *repository.FormRepo
}

func NewFormService(forms *repository.FormRepo) *FormService {
	return &FormService{forms: forms}
}

// FormInput is a form definition from the builder.
type FormInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Fields      []*formengine.Field `json:"fields"`
}

// prepare assigns IDs to new fields and compiles the result. A compile
// failure is returned as the *formengine.SchemaError.
func (in *FormInput) prepare() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalid("form title is required")
	}
	if len(in.Fields) == 0 {
		return invalid("at least one field is required")
	}
	assignIDs(in.Fields)
	_, err := formengine.Compile(&formengine.Form{Title: in.Title, Fields: in.Fields})
	return err
}

func assignIDs(fields []*formengine.Field) {
	for _, f := range fields {
		if f == nil {
			continue
		}
		if f.ID == "" {
			f.ID = formengine.FieldID(uuid.NewString())
		}
		assignIDs(f.Children)
	}
}

func (s *FormService) Create(ctx context.Context, createdBy string, in *FormInput) (*models.Form, error) {
	if err := in.prepare(); err != nil {
		return nil, err
	}
	ts := now()
	form := &models.Form{
		Title:       in.Title,
		Description: in.Description,
		Fields:      in.Fields,
		CreatedBy:   createdBy,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	id, err := s.forms.Create(ctx, form)
	if err != nil {
		return nil, storeError(err, "form")
	}
	form.ID = id
	return form, nil
}

func (s *FormService) List(ctx context.Context) ([]models.Form, error) {
	return s.forms.FindAll(ctx)
}

func (s *FormService) Get(ctx context.Context, id string) (*models.Form, error) {
	form, err := s.forms.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, notFound("form")
	}
	return form, nil
}

// Schema loads a form and compiles it.
func (s *FormService) Schema(ctx context.Context, id string) (*formengine.Schema, error) {
	form, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return formengine.Compile(form.Definition())
}

// Update replaces the whole definition.
func (s *FormService) Update(ctx context.Context, id string, in *FormInput) (*models.Form, error) {
	form, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.prepare(); err != nil {
		return nil, err
	}
	form.Title = in.Title
	form.Description = in.Description
	form.Fields = in.Fields
	form.UpdatedAt = now()
	if err := s.forms.Update(ctx, id, form); err != nil {
		return nil, storeError(err, "form")
	}
	return form, nil
}

func (s *FormService) Delete(ctx context.Context, id string) error {
	return storeError(s.forms.Delete(ctx, id), "form")
}

func (s *FormService) Count(ctx context.Context) (int, error) {
	return s.forms.Count(ctx)
}
