// Package memstore is an in-process remote store. It backs offline demos and
// tests and can be told to fail on demand.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/moodkeeper/internal/client/remote"
	"github.com/google/uuid"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpQuery  Op = "query"
	OpPing   Op = "ping"
)

type record struct {
	userID string
	seq    int
	fields map[string]any
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	seq      int
	data     map[string]map[string]record
	failures map[Op]error
	calls    map[Op]int
	newID    func() string
}

func New() *Store {
	return &Store{
		data:     make(map[string]map[string]record),
		failures: make(map[Op]error),
		calls:    make(map[Op]int),
		newID:    uuid.NewString,
	}
}

// FailWith makes every following op call return err until cleared with a
// nil err.
func (s *Store) FailWith(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls reports how many times op was invoked, failed calls included.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Len returns the number of documents in collection.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[collection])
}

// Put seeds a document with a caller-chosen id, as if another device had
// created it.
func (s *Store) Put(collection, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, fields)
}

func (s *Store) begin(op Op) error {
	s.calls[op]++
	return s.failures[op]
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", remote.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpCreate); err != nil {
		return "", err
	}
	id := s.newID()
	s.put(collection, id, fields)
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", remote.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpdate); err != nil {
		return err
	}
	if _, ok := s.data[collection][id]; !ok {
		return fmt.Errorf("%w: %s/%s", remote.ErrNotFound, collection, id)
	}
	s.put(collection, id, fields)
	return nil
}

// QueryByUser returns documents in creation order.
func (s *Store) QueryByUser(ctx context.Context, collection, userID string) ([]remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpQuery); err != nil {
		return nil, err
	}

	type item struct {
		seq int
		doc remote.Document
	}
	var items []item
	for id, rec := range s.data[collection] {
		if rec.userID != userID {
			continue
		}
		items = append(items, item{seq: rec.seq, doc: remote.Document{ID: id, Fields: normalize(rec.fields)}})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	docs := make([]remote.Document, 0, len(items))
	for _, it := range items {
		docs = append(docs, it.doc)
	}
	return docs, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin(OpPing)
}

func (s *Store) Close() error { return nil }

func (s *Store) put(collection, id string, fields map[string]any) {
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]record)
	}
	userID, _ := fields["userId"].(string)
	seq := s.seq
	if prev, ok := s.data[collection][id]; ok {
		seq = prev.seq
	} else {
		s.seq++
	}
	s.data[collection][id] = record{userID: userID, seq: seq, fields: normalize(fields)}
}

// normalize copies fields and turns integers into float64, which is what a
// JSON or protobuf round trip would hand back.
func normalize(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case int32:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case float32:
			out[k] = float64(n)
		default:
			out[k] = v
		}
	}
	return out
}
