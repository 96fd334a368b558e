package service

import (
	"context"
	"fmt"
	"net/url"

	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/formengine"
	"github.com/uwamba/edms/internal/models"
	"github.com/uwamba/edms/internal/repository"
)

type SubmissionService struct {
	subs  *repository.SubmissionRepo
	forms *FormService
	docs  *DocumentService
}

func NewSubmissionService(subs *repository.SubmissionRepo, forms *FormService, docs *DocumentService) *SubmissionService {
	return &SubmissionService{subs: subs, forms: forms, docs: docs}
}

// Create rebuilds the answers from a flattened payload, validates them with
// the form's schema and stores the visible values. Invalid answers come back
// as formengine.ValidationErrors and nothing is written. When a file upload or
// the submission insert fails, the documents already stored are removed.
func (s *SubmissionService) Create(ctx context.Context, formID string, values url.Values, files map[string][]*formengine.File, createdBy string) (sub *models.Submission, err error) {
	schema, err := s.forms.Schema(ctx, formID)
	if err != nil {
		return nil, err
	}
	store, err := formengine.Hydrate(schema, values, files)
	if err != nil {
		return nil, invalid("%v", err)
	}
	if err := store.Validate().Err(); err != nil {
		return nil, err
	}

	data := store.Data()
	var fileIDs []string
	defer func() {
		if err != nil {
			s.discard(ctx, fileIDs)
		}
	}()
	upload := func(f *formengine.File) (models.FileRef, error) {
		doc, err := s.docs.Upload(ctx, f.Name, f.Data, f.ContentType, formID, "", createdBy)
		if err != nil {
			return models.FileRef{}, err
		}
		fileIDs = append(fileIDs, doc.ID)
		return models.FileRef{DocumentID: doc.ID, FileName: doc.FileName, ContentType: doc.ContentType, Size: doc.Size}, nil
	}
	for path, v := range data {
		switch t := v.(type) {
		case *formengine.File:
			ref, err := upload(t)
			if err != nil {
				return nil, fmt.Errorf("store file %s: %w", path, err)
			}
			data[path] = ref
		case []*formengine.File:
			refs := make([]models.FileRef, 0, len(t))
			for _, f := range t {
				ref, err := upload(f)
				if err != nil {
					return nil, fmt.Errorf("store file %s: %w", path, err)
				}
				refs = append(refs, ref)
			}
			data[path] = refs
		}
	}

	ts := now()
	sub = &models.Submission{
		FormID:    formID,
		Data:      data,
		Files:     fileIDs,
		CreatedBy: createdBy,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	id, err := s.subs.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	sub.ID = id
	if err := s.docs.Attach(ctx, id, fileIDs); err != nil {
		log.WithError(err).WithField("submission", id).Warn("link documents failed")
	}
	log.WithFields(log.Fields{"form": formID, "submission": id, "files": len(fileIDs)}).Info("submission stored")
	return sub, nil
}

// discard removes documents stored for a submission that was never written.
func (s *SubmissionService) discard(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := s.docs.Delete(ctx, id); err != nil {
			log.WithError(err).WithField("document", id).Warn("orphaned submission document")
		}
	}
}

func (s *SubmissionService) List(ctx context.Context, formID string, skip, limit int) ([]models.Submission, int, error) {
	return s.subs.FindByFormID(ctx, formID, skip, limit)
}

func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, notFound("submission")
	}
	return sub, nil
}

// Delete removes a submission together with its documents.
func (s *SubmissionService) Delete(ctx context.Context, id string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, docID := range sub.Files {
		if err := s.docs.Delete(ctx, docID); err != nil {
			log.WithError(err).WithField("document", docID).Warn("delete submission document failed")
		}
	}
	return storeError(s.subs.Delete(ctx, id), "submission")
}

func (s *SubmissionService) CountByForm(ctx context.Context, formID string) (int, error) {
	return s.subs.CountByFormID(ctx, formID)
}

func (s *SubmissionService) Count(ctx context.Context) (int, error) {
	return s.subs.Count(ctx)
}
