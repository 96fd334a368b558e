package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Pool)(nil)
)

var identRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SQLite keeps every collection in one table of JSON bodies. It is the
// development and test store; ":memory:" gives a private in-memory database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection: an in-memory database exists per connection, and a
	// single writer keeps file databases free of SQLITE_BUSY.
	sdb.SetMaxOpenConns(1)

	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS docs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			body TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_docs_collection ON docs(collection);`,
		`CREATE TABLE IF NOT EXISTS blobs (
			key TEXT PRIMARY KEY,
			content_type TEXT NOT NULL,
			data BLOB NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := sdb.ExecContext(ctx, s); err != nil {
			sdb.Close()
			return nil, fmt.Errorf("sqlite: init: %w", err)
		}
	}
	return &SQLite{db: sdb}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Insert(ctx context.Context, collection string, doc Doc) (string, error) {
	body, err := marshalBody(doc)
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO docs (collection, body) VALUES (?, ?)`, collection, body)
	if err != nil {
		return "", mapSQLiteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// where builds the filter clause and its arguments.
func where(collection string, filter Doc) (string, []any, error) {
	var b strings.Builder
	b.WriteString("collection = ?")
	args := []any{collection}
	for k, v := range filter {
		if k == "_id" {
			id, err := parseID(fmt.Sprint(v))
			if err != nil {
				return "", nil, err
			}
			b.WriteString(" AND id = ?")
			args = append(args, id)
			continue
		}
		if v == nil {
			b.WriteString(" AND json_extract(body, ?) IS NULL")
			args = append(args, "$."+k)
			continue
		}
		b.WriteString(" AND json_extract(body, ?) = ?")
		args = append(args, "$."+k, v)
	}
	return b.String(), args, nil
}

func (s *SQLite) FindOne(ctx context.Context, collection string, filter Doc) (Doc, error) {
	docs, err := s.Find(ctx, collection, filter, &FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (s *SQLite) Find(ctx context.Context, collection string, filter Doc, opts *FindOptions) ([]Doc, error) {
	cond, args, err := where(collection, filter)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Doc{}, nil
		}
		return nil, err
	}
	q := "SELECT id, body FROM docs WHERE " + cond
	if opts == nil {
		opts = &FindOptions{}
	}
	dir := "ASC"
	if opts.Desc {
		dir = "DESC"
	}
	if opts.Sort != "" {
		q += " ORDER BY json_extract(body, ?) " + dir + ", id " + dir
		args = append(args, "$."+opts.Sort)
	} else {
		q += " ORDER BY id " + dir
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Skip)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find %s: %w", collection, err)
	}
	defer rows.Close()

	out := []Doc{}
	for rows.Next() {
		var id int64
		var body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		var doc Doc
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("sqlite: decode %s/%d: %w", collection, id, err)
		}
		doc["_id"] = strconv.FormatInt(id, 10)
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *SQLite) Update(ctx context.Context, collection, id string, doc Doc) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx, `SELECT body FROM docs WHERE collection = ? AND id = ?`, collection, n).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var current Doc
	if err := json.Unmarshal([]byte(body), &current); err != nil {
		return fmt.Errorf("sqlite: decode %s/%s: %w", collection, id, err)
	}
	for k, v := range doc {
		current[k] = v
	}
	merged, err := marshalBody(current)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE docs SET body = ? WHERE id = ?`, merged, n); err != nil {
		return mapSQLiteError(err)
	}
	return tx.Commit()
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM docs WHERE collection = ? AND id = ?`, collection, n)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Count(ctx context.Context, collection string, filter Doc) (int, error) {
	cond, args, err := where(collection, filter)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM docs WHERE "+cond, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// EnsureIndex creates an expression index over the member, partial to the
// collection. Identifiers are restricted because they are spliced into DDL.
func (s *SQLite) EnsureIndex(ctx context.Context, collection, field string, unique bool) error {
	if !identRe.MatchString(collection) || !identRe.MatchString(field) {
		return fmt.Errorf("sqlite: invalid index identifier %s.%s", collection, field)
	}
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	stmt := fmt.Sprintf(`CREATE %s IF NOT EXISTS idx_%s_%s ON docs(json_extract(body, '$.%s')) WHERE collection = '%s'`,
		kind, collection, field, field, collection)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: index %s.%s: %w", collection, field, err)
	}
	return nil
}

func (s *SQLite) PutBlob(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (key, content_type, data) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET content_type = excluded.content_type, data = excluded.data`,
		key, contentType, data)
	return err
}

func (s *SQLite) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *SQLite) DeleteBlob(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
	return err
}

func marshalBody(doc Doc) (string, error) {
	body := make(Doc, len(doc))
	for k, v := range doc {
		if k != "_id" {
			body[k] = v
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode document: %w", err)
	}
	return string(b), nil
}

// parseID maps a malformed ID to ErrNotFound: no document can carry it.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q", ErrNotFound, id)
	}
	return n, nil
}

func mapSQLiteError(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
