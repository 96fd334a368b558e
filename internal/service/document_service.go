package service

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/models"
	"github.com/uwamba/edms/internal/repository"
)

type DocumentService struct {
	docs *repository.DocumentRepo
}

func NewDocumentService(docs *repository.DocumentRepo) *DocumentService {
	return &DocumentService{docs: docs}
}

// Upload stores data as a blob and records its metadata.
func (s *DocumentService) Upload(ctx context.Context, fileName string, data []byte, contentType, formID, submissionID, uploadedBy string) (*models.Document, error) {
	if len(data) == 0 {
		return nil, invalid("file data is empty")
	}
	fileName = filepath.Base(fileName)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectContentType(fileName)
	}

	blobKey := fmt.Sprintf("%s_%s", uuid.NewString(), fileName)
	if err := s.docs.PutBlob(ctx, blobKey, data, contentType); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	doc := &models.Document{
		FileName:     fileName,
		ContentType:  contentType,
		Size:         int64(len(data)),
		BlobKey:      blobKey,
		FormID:       formID,
		SubmissionID: submissionID,
		UploadedBy:   uploadedBy,
		CreatedAt:    now(),
	}
	id, err := s.docs.Create(ctx, doc)
	if err != nil {
		if derr := s.docs.DeleteBlob(ctx, blobKey); derr != nil {
			log.WithError(derr).WithField("key", blobKey).Warn("orphaned blob")
		}
		return nil, err
	}
	doc.ID = id
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, notFound("document")
	}
	return doc, nil
}

func (s *DocumentService) Download(ctx context.Context, id string) ([]byte, *models.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.docs.GetBlob(ctx, doc.BlobKey)
	if err != nil {
		return nil, nil, storeError(err, "document content")
	}
	return data, doc, nil
}

func (s *DocumentService) List(ctx context.Context, skip, limit int) ([]models.Document, int, error) {
	return s.docs.FindAll(ctx, skip, limit)
}

func (s *DocumentService) ListBySubmission(ctx context.Context, submissionID string) ([]models.Document, error) {
	return s.docs.FindBySubmission(ctx, submissionID)
}

// Attach links documents to the submission they were uploaded with.
func (s *DocumentService) Attach(ctx context.Context, submissionID string, ids []string) error {
	for _, id := range ids {
		if err := s.docs.SetSubmission(ctx, id, submissionID); err != nil {
			return storeError(err, "document")
		}
	}
	return nil
}

func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docs.DeleteBlob(ctx, doc.BlobKey); err != nil {
		log.WithError(err).WithField("key", doc.BlobKey).Warn("delete blob failed")
	}
	return storeError(s.docs.Delete(ctx, id), "document")
}

func (s *DocumentService) Count(ctx context.Context) (int, error) {
	return s.docs.CountAll(ctx)
}

var officeTypes = map[string]string{
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func detectContentType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ct, ok := officeTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
