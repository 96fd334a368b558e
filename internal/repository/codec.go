package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uwamba/edms/internal/db"
)

// toDoc converts a model to a stored document. The model's "id" member is
// dropped; the store owns document IDs.
func toDoc(v any) (db.Doc, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	var doc db.Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %T doc: %w", v, err)
	}
	delete(doc, "id")
	return doc, nil
}

// fromDoc fills out from a stored document, exposing "_id" as "id".
func fromDoc(doc db.Doc, out any) error {
	if id, ok := doc["_id"]; ok {
		doc["id"] = id
		delete(doc, "_id")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal %T: %w", out, err)
	}
	return nil
}

// findOne returns false when nothing matches.
func findOne(ctx context.Context, store db.Store, collection string, filter db.Doc, out any) (bool, error) {
	doc, err := store.FindOne(ctx, collection, filter)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, fromDoc(doc, out)
}

func findAll[T any](ctx context.Context, store db.Store, collection string, filter db.Doc, opts *db.FindOptions) ([]T, error) {
	docs, err := store.Find(ctx, collection, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := fromDoc(d, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
