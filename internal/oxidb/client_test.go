package oxidb_test

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uwamba/edms/internal/oxidb"
)

// fakeServer speaks the length-prefixed JSON protocol and answers each
// request with handle's result.
func fakeServer(t *testing.T, handle func(req map[string]any) map[string]any) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(conn, handle)
		}
	}()
	return ln.Addr().String()
}

func serve(conn net.Conn, handle func(map[string]any) map[string]any) {
	defer conn.Close()
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			return
		}
		body := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			return
		}
		out, _ := json.Marshal(handle(req))
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(out)))
		conn.Write(append(lenBuf[:], out...))
	}
}

func connect(t *testing.T, addr string) *oxidb.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), oxidb.DefaultDialTimeout)
	defer cancel()
	c, err := oxidb.Connect(ctx, addr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPing(t *testing.T) {
	addr := fakeServer(t, func(req map[string]any) map[string]any {
		return map[string]any{"ok": true, "data": "pong"}
	})
	if err := connect(t, addr).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestCommandsAndResults(t *testing.T) {
	var calls atomic.Int32
	addr := fakeServer(t, func(req map[string]any) map[string]any {
		cmd, _ := req["cmd"].(string)
		calls.Add(1)
		switch cmd {
		case "insert":
			return map[string]any{"ok": true, "data": map[string]any{"id": 7}}
		case "find":
			if req["limit"] != float64(2) {
				return map[string]any{"ok": false, "error": "limit not forwarded"}
			}
			return map[string]any{"ok": true, "data": []any{
				map[string]any{"_id": 1, "title": "a"},
				map[string]any{"_id": 2, "title": "b"},
			}}
		case "find_one":
			return map[string]any{"ok": true, "data": nil}
		case "count":
			return map[string]any{"ok": true, "data": map[string]any{"count": 42}}
		case "update_one":
			return map[string]any{"ok": true, "data": map[string]any{"modified": 1}}
		}
		return map[string]any{"ok": false, "error": "unknown command " + cmd}
	})
	c := connect(t, addr)
	ctx := context.Background()

	id, err := c.Insert(ctx, "forms", map[string]any{"title": "a"})
	if err != nil || id != float64(7) {
		t.Fatalf("insert = %v, %v", id, err)
	}
	docs, err := c.Find(ctx, "forms", map[string]any{}, &oxidb.FindOptions{Limit: 2})
	if err != nil || len(docs) != 2 {
		t.Fatalf("find = %v, %v", docs, err)
	}
	doc, err := c.FindOne(ctx, "forms", map[string]any{"_id": 99})
	if err != nil || doc != nil {
		t.Fatalf("find_one = %v, %v", doc, err)
	}
	n, err := c.Count(ctx, "forms", map[string]any{})
	if err != nil || n != 42 {
		t.Fatalf("count = %d, %v", n, err)
	}
	mod, err := c.UpdateOne(ctx, "forms", map[string]any{"_id": 1}, map[string]any{"$set": map[string]any{"title": "c"}})
	if err != nil || mod != 1 {
		t.Fatalf("update_one = %d, %v", mod, err)
	}
	if n := calls.Load(); n != 5 {
		t.Fatalf("server saw %d calls", n)
	}
}

func TestServerErrors(t *testing.T) {
	addr := fakeServer(t, func(req map[string]any) map[string]any {
		if req["cmd"] == "insert" {
			return map[string]any{"ok": false, "error": "unique index conflict on email"}
		}
		return map[string]any{"ok": false, "error": "bucket already exists"}
	})
	c := connect(t, addr)

	_, err := c.Insert(context.Background(), "users", map[string]any{"email": "x"})
	var conflict *oxidb.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	err = c.CreateBucket(context.Background(), "files")
	var serr *oxidb.Error
	if !errors.As(err, &serr) || !serr.AlreadyExists() {
		t.Fatalf("expected already-exists Error, got %v", err)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	var mu sync.Mutex
	blobs := map[string]string{}
	addr := fakeServer(t, func(req map[string]any) map[string]any {
		mu.Lock()
		defer mu.Unlock()
		key, _ := req["key"].(string)
		switch req["cmd"] {
		case "put_object":
			blobs[key], _ = req["data"].(string)
			return map[string]any{"ok": true, "data": map[string]any{"key": key}}
		case "get_object":
			return map[string]any{"ok": true, "data": map[string]any{"content": blobs[key]}}
		}
		return map[string]any{"ok": false, "error": "unsupported"}
	})
	c := connect(t, addr)
	ctx := context.Background()

	if err := c.PutObject(ctx, "files", "k", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	mu.Lock()
	stored := blobs["k"]
	mu.Unlock()
	if stored != base64.StdEncoding.EncodeToString([]byte("hello")) {
		t.Fatalf("stored %q", stored)
	}
	data, err := c.GetObject(ctx, "files", "k")
	if err != nil || string(data) != "hello" {
		t.Fatalf("get = %q, %v", data, err)
	}
}

func TestContextDeadline(t *testing.T) {
	addr := fakeServer(t, func(req map[string]any) map[string]any {
		time.Sleep(200 * time.Millisecond)
		return map[string]any{"ok": true, "data": "pong"}
	})
	c := connect(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Ping(ctx); err == nil {
		t.Fatal("expected deadline error")
	}
}

// TestLiveServer runs against a real oxidb-server when OXIDB_HOST is set.
func TestLiveServer(t *testing.T) {
	host := os.Getenv("OXIDB_HOST")
	if host == "" {
		t.Skip("OXIDB_HOST not set")
	}
	port := os.Getenv("OXIDB_PORT")
	if port == "" {
		port = "4444"
	}
	c := connect(t, net.JoinHostPort(host, port))
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	id, err := c.Insert(ctx, "edms_go_test", map[string]any{"name": "Alice"})
	if err != nil || id == nil {
		t.Fatalf("insert = %v, %v", id, err)
	}
	doc, err := c.FindOne(ctx, "edms_go_test", map[string]any{"_id": id})
	if err != nil || doc["name"] != "Alice" {
		t.Fatalf("find_one = %v, %v", doc, err)
	}
	if _, err := c.DeleteOne(ctx, "edms_go_test", map[string]any{"_id": id}); err != nil {
		t.Fatalf("delete_one: %v", err)
	}
}
