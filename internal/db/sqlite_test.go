package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/uwamba/edms/internal/db"
)

func openMemory(t *testing.T) *db.SQLite {
	t.Helper()
	s, err := db.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteCRUD(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "forms", db.Doc{"title": "Leave", "fields": []any{}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	doc, err := s.FindOne(ctx, "forms", db.Doc{"_id": id})
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if doc["title"] != "Leave" || doc["_id"] != id {
		t.Fatalf("unexpected doc %v", doc)
	}

	if err := s.Update(ctx, "forms", id, db.Doc{"description": "annual"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, _ = s.FindOne(ctx, "forms", db.Doc{"_id": id})
	if doc["title"] != "Leave" || doc["description"] != "annual" {
		t.Fatalf("update did not merge: %v", doc)
	}

	if err := s.Delete(ctx, "forms", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.FindOne(ctx, "forms", db.Doc{"_id": id}); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "forms", id); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := s.Update(ctx, "forms", "abc", db.Doc{"x": 1}); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
}

func TestSQLiteFindFilterSortPage(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	for _, d := range []db.Doc{
		{"form_id": "1", "n": 3},
		{"form_id": "1", "n": 1},
		{"form_id": "2", "n": 2},
		{"form_id": "1", "n": 2},
	} {
		if _, err := s.Insert(ctx, "submissions", d); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := s.Insert(ctx, "other", db.Doc{"form_id": "1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	docs, err := s.Find(ctx, "submissions", db.Doc{"form_id": "1"}, &db.FindOptions{Sort: "n"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
	for i, want := range []float64{1, 2, 3} {
		if docs[i]["n"] != want {
			t.Fatalf("doc %d: n = %v, want %v", i, docs[i]["n"], want)
		}
	}

	page, err := s.Find(ctx, "submissions", db.Doc{}, &db.FindOptions{Sort: "n", Desc: true, Skip: 1, Limit: 2})
	if err != nil {
		t.Fatalf("find page: %v", err)
	}
	if len(page) != 2 || page[0]["n"] != float64(2) {
		t.Fatalf("unexpected page %v", page)
	}

	n, err := s.Count(ctx, "submissions", db.Doc{"form_id": "1"})
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
	if n, _ := s.Count(ctx, "submissions", db.Doc{"_id": "nope"}); n != 0 {
		t.Fatalf("count with malformed id = %d", n)
	}
}

func TestSQLiteUniqueIndex(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	if err := s.EnsureIndex(ctx, "users", "email", true); err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	if err := s.EnsureIndex(ctx, "users", "email", true); err != nil {
		t.Fatalf("ensure index twice: %v", err)
	}
	if _, err := s.Insert(ctx, "users", db.Doc{"email": "a@x"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, "users", db.Doc{"email": "a@x"}); !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// The index is partial to its collection.
	if _, err := s.Insert(ctx, "contacts", db.Doc{"email": "a@x"}); err != nil {
		t.Fatalf("insert into other collection: %v", err)
	}
	if err := s.EnsureIndex(ctx, "users", "email'; DROP", false); err == nil {
		t.Fatal("expected invalid identifier error")
	}
}

func TestSQLiteBlobs(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	if err := s.PutBlob(ctx, "k", []byte("v1"), "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutBlob(ctx, "k", []byte("v2"), ""); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := s.GetBlob(ctx, "k")
	if err != nil || string(data) != "v2" {
		t.Fatalf("get = %q, %v", data, err)
	}
	if err := s.DeleteBlob(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetBlob(ctx, "k"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
