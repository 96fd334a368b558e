// Package oxidb is a TCP client for oxidb-server, reduced to the commands the
// document store needs: CRUD, counting, indexes and blob objects.
//
// Protocol: each message is [4-byte little-endian length][JSON payload].
// The server answers {"ok": true, "data": ...} or {"ok": false, "error": "..."}.
package oxidb

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultDialTimeout applies when the caller's context has no deadline.
	DefaultDialTimeout = 5 * time.Second

	// maxFrame bounds a single response; a corrupt length prefix must not
	// make the client allocate gigabytes.
	maxFrame = 256 << 20
)

// Client is a single connection to oxidb-server. Requests on one client are
// serialized.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
}

// Connect dials oxidb-server at addr ("host:port").
func Connect(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("oxidb: connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

type response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (c *Client) roundTrip(ctx context.Context, req map[string]any) (*response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("oxidb: marshal request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("oxidb: set deadline: %w", err)
	}
	frame := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	if _, err := c.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("oxidb: send: %w", err)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(c.conn, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("oxidb: read length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrame {
		return nil, fmt.Errorf("oxidb: response of %d bytes exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, fmt.Errorf("oxidb: read payload: %w", err)
	}
	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("oxidb: unmarshal response: %w", err)
	}
	return &resp, nil
}

// call sends one command and decodes the data member into out, if out is
// non-nil.
func (c *Client) call(ctx context.Context, cmd string, args map[string]any, out any) error {
	req := make(map[string]any, len(args)+1)
	for k, v := range args {
		req[k] = v
	}
	req["cmd"] = cmd
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		if strings.Contains(strings.ToLower(msg), "conflict") {
			return &ConflictError{Msg: msg}
		}
		return &Error{Cmd: cmd, Msg: msg}
	}
	if out == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("oxidb: decode %s result: %w", cmd, err)
	}
	return nil
}

// Ping checks the connection. The server answers "pong".
func (c *Client) Ping(ctx context.Context) error {
	var pong string
	if err := c.call(ctx, "ping", nil, &pong); err != nil {
		return err
	}
	if pong != "pong" {
		return fmt.Errorf("oxidb: unexpected ping reply %q", pong)
	}
	return nil
}

// Insert stores doc and returns the server-assigned ID.
func (c *Client) Insert(ctx context.Context, collection string, doc map[string]any) (any, error) {
	var res struct {
		ID any `json:"id"`
	}
	err := c.call(ctx, "insert", map[string]any{"collection": collection, "doc": doc}, &res)
	return res.ID, err
}

// FindOptions narrows a Find.
type FindOptions struct {
	Sort  map[string]int
	Skip  int
	Limit int
}

// Find returns the documents matching query.
func (c *Client) Find(ctx context.Context, collection string, query map[string]any, opts *FindOptions) ([]map[string]any, error) {
	args := map[string]any{"collection": collection, "query": query}
	if opts != nil {
		if len(opts.Sort) > 0 {
			args["sort"] = opts.Sort
		}
		if opts.Skip > 0 {
			args["skip"] = opts.Skip
		}
		if opts.Limit > 0 {
			args["limit"] = opts.Limit
		}
	}
	var docs []map[string]any
	if err := c.call(ctx, "find", args, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// FindOne returns the first document matching query, or nil.
func (c *Client) FindOne(ctx context.Context, collection string, query map[string]any) (map[string]any, error) {
	var doc map[string]any
	if err := c.call(ctx, "find_one", map[string]any{"collection": collection, "query": query}, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateOne applies update to the first document matching query and
// returns how many documents changed.
func (c *Client) UpdateOne(ctx context.Context, collection string, query, update map[string]any) (int, error) {
	var res struct {
		Modified int `json:"modified"`
	}
	err := c.call(ctx, "update_one", map[string]any{"collection": collection, "query": query, "update": update}, &res)
	return res.Modified, err
}

// DeleteOne removes the first document matching query and returns how many
// documents were removed.
func (c *Client) DeleteOne(ctx context.Context, collection string, query map[string]any) (int, error) {
	var res struct {
		Deleted int `json:"deleted"`
	}
	err := c.call(ctx, "delete_one", map[string]any{"collection": collection, "query": query}, &res)
	return res.Deleted, err
}

// Count returns the number of documents matching query.
func (c *Client) Count(ctx context.Context, collection string, query map[string]any) (int, error) {
	var res struct {
		Count int `json:"count"`
	}
	err := c.call(ctx, "count", map[string]any{"collection": collection, "query": query}, &res)
	return res.Count, err
}

// CreateIndex creates an index on field, unique if requested.
func (c *Client) CreateIndex(ctx context.Context, collection, field string, unique bool) error {
	cmd := "create_index"
	if unique {
		cmd = "create_unique_index"
	}
	return c.call(ctx, cmd, map[string]any{"collection": collection, "field": field}, nil)
}

// CreateBucket creates a blob bucket.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	return c.call(ctx, "create_bucket", map[string]any{"bucket": bucket}, nil)
}

// PutObject uploads a blob. Data travels base64-encoded.
func (c *Client) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.call(ctx, "put_object", map[string]any{
		"bucket":       bucket,
		"key":          key,
		"data":         base64.StdEncoding.EncodeToString(data),
		"content_type": contentType,
	}, nil)
}

// GetObject downloads a blob.
func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	var res struct {
		Content string `json:"content"`
	}
	if err := c.call(ctx, "get_object", map[string]any{"bucket": bucket, "key": key}, &res); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(res.Content)
	if err != nil {
		return nil, fmt.Errorf("oxidb: decode base64: %w", err)
	}
	return data, nil
}

// DeleteObject removes a blob.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	return c.call(ctx, "delete_object", map[string]any{"bucket": bucket, "key": key}, nil)
}
