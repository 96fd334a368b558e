package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/oxidb"
)

// BlobBucket is the oxidb bucket holding uploaded files.
const BlobBucket = "edms_files"

// Pool is a round-robin set of oxidb-server connections with keepalive and
// reconnect. It implements Store.
type Pool struct {
	addr    string
	clients []*oxidb.Client
	mu      []sync.RWMutex
	idx     uint64
	stop    chan struct{}
	once    sync.Once
}

// NewPool opens size connections to host:port and makes sure the blob
// bucket exists.
func NewPool(ctx context.Context, host string, port, size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		clients: make([]*oxidb.Client, size),
		mu:      make([]sync.RWMutex, size),
		stop:    make(chan struct{}),
	}
	for i := range p.clients {
		c, err := p.dial(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pool: connect client %d: %w", i, err)
		}
		p.clients[i] = c
	}
	if err := p.get().CreateBucket(ctx, BlobBucket); err != nil && !alreadyExists(err) {
		p.Close()
		return nil, fmt.Errorf("pool: create bucket: %w", err)
	}
	go p.keepalive()
	return p, nil
}

func (p *Pool) dial(ctx context.Context) (*oxidb.Client, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, oxidb.DefaultDialTimeout)
		defer cancel()
	}
	return oxidb.Connect(ctx, p.addr)
}

// get returns the next client in round-robin order.
func (p *Pool) get() *oxidb.Client {
	i := atomic.AddUint64(&p.idx, 1) % uint64(len(p.clients))
	p.mu[i].RLock()
	defer p.mu[i].RUnlock()
	return p.clients[i]
}

func (p *Pool) reconnect(i int) {
	c, err := p.dial(context.Background())
	if err != nil {
		log.WithError(err).WithField("client", i).Warn("pool: reconnect failed")
		return
	}
	p.mu[i].Lock()
	old := p.clients[i]
	p.clients[i] = c
	p.mu[i].Unlock()
	if old != nil {
		old.Close()
	}
}

func (p *Pool) keepalive() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			for i := range p.clients {
				p.mu[i].RLock()
				c := p.clients[i]
				p.mu[i].RUnlock()
				ctx, cancel := context.WithTimeout(context.Background(), oxidb.DefaultDialTimeout)
				err := c.Ping(ctx)
				cancel()
				if err != nil {
					log.WithError(err).WithField("client", i).Warn("pool: ping failed, reconnecting")
					p.reconnect(i)
				}
			}
		}
	}
}

// Close stops the keepalive loop and closes every connection.
func (p *Pool) Close() error {
	p.once.Do(func() { close(p.stop) })
	for i, c := range p.clients {
		if c != nil {
			c.Close()
			p.clients[i] = nil
		}
	}
	return nil
}

func (p *Pool) Ping(ctx context.Context) error {
	return p.get().Ping(ctx)
}

func (p *Pool) Insert(ctx context.Context, collection string, doc Doc) (string, error) {
	body := make(Doc, len(doc))
	for k, v := range doc {
		if k != "_id" {
			body[k] = v
		}
	}
	id, err := p.get().Insert(ctx, collection, body)
	if err != nil {
		return "", mapError(err)
	}
	return idString(id), nil
}

func (p *Pool) FindOne(ctx context.Context, collection string, filter Doc) (Doc, error) {
	doc, err := p.get().FindOne(ctx, collection, toQuery(filter))
	if err != nil {
		return nil, mapError(err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	normalizeID(doc)
	return doc, nil
}

func (p *Pool) Find(ctx context.Context, collection string, filter Doc, opts *FindOptions) ([]Doc, error) {
	var fo *oxidb.FindOptions
	if opts != nil {
		fo = &oxidb.FindOptions{Skip: opts.Skip, Limit: opts.Limit}
		if opts.Sort != "" {
			dir := 1
			if opts.Desc {
				dir = -1
			}
			fo.Sort = map[string]int{opts.Sort: dir}
		}
	}
	docs, err := p.get().Find(ctx, collection, toQuery(filter), fo)
	if err != nil {
		return nil, mapError(err)
	}
	for _, d := range docs {
		normalizeID(d)
	}
	return docs, nil
}

func (p *Pool) Update(ctx context.Context, collection, id string, doc Doc) error {
	set := make(Doc, len(doc))
	for k, v := range doc {
		if k != "_id" {
			set[k] = v
		}
	}
	c := p.get()
	query := map[string]any{"_id": toNumericID(id)}
	n, err := c.UpdateOne(ctx, collection, query, map[string]any{"$set": set})
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		// An update that changes nothing also reports zero.
		count, err := c.Count(ctx, collection, query)
		if err != nil {
			return mapError(err)
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (p *Pool) Delete(ctx context.Context, collection, id string) error {
	n, err := p.get().DeleteOne(ctx, collection, map[string]any{"_id": toNumericID(id)})
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Pool) Count(ctx context.Context, collection string, filter Doc) (int, error) {
	n, err := p.get().Count(ctx, collection, toQuery(filter))
	return n, mapError(err)
}

func (p *Pool) EnsureIndex(ctx context.Context, collection, field string, unique bool) error {
	err := p.get().CreateIndex(ctx, collection, field, unique)
	if err != nil && !alreadyExists(err) {
		return mapError(err)
	}
	return nil
}

func (p *Pool) PutBlob(ctx context.Context, key string, data []byte, contentType string) error {
	return mapError(p.get().PutObject(ctx, BlobBucket, key, data, contentType))
}

func (p *Pool) GetBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := p.get().GetObject(ctx, BlobBucket, key)
	if err != nil {
		var serr *oxidb.Error
		if errors.As(err, &serr) && strings.Contains(strings.ToLower(serr.Msg), "not found") {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (p *Pool) DeleteBlob(ctx context.Context, key string) error {
	return mapError(p.get().DeleteObject(ctx, BlobBucket, key))
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *oxidb.ConflictError
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %s", ErrDuplicate, conflict.Msg)
	}
	var serr *oxidb.Error
	if errors.As(err, &serr) {
		msg := strings.ToLower(serr.Msg)
		if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
			return fmt.Errorf("%w: %s", ErrDuplicate, serr.Msg)
		}
	}
	return err
}

func alreadyExists(err error) bool {
	var serr *oxidb.Error
	return errors.As(err, &serr) && serr.AlreadyExists()
}

// toQuery converts string IDs to the numeric form oxidb assigns.
func toQuery(filter Doc) map[string]any {
	q := make(map[string]any, len(filter))
	for k, v := range filter {
		if s, ok := v.(string); ok && k == "_id" {
			q[k] = toNumericID(s)
			continue
		}
		q[k] = v
	}
	return q
}

func toNumericID(id string) any {
	if n, err := strconv.ParseFloat(id, 64); err == nil {
		return n
	}
	return id
}

// normalizeID rewrites the numeric _id oxidb returns as a string.
func normalizeID(doc Doc) {
	if id, ok := doc["_id"]; ok {
		doc["_id"] = idString(id)
	}
}

func idString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(id)
}
