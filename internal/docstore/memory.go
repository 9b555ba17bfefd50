package docstore

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryDoc struct {
	seq    int64
	fields Fields
}

// MemoryStore: документное хранилище в памяти процесса. Используется в тестах
// и для локального запуска без внешней базы.
type MemoryStore struct {
	mu          sync.RWMutex
	seq         int64
	collections map[string]map[string]memoryDoc
	now         func() time.Time
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]memoryDoc),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Close ничего не делает.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: copyFields(d.fields)}, nil
}

func (m *MemoryStore) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filter(collection, func(Fields) bool { return true }), nil
}

func (m *MemoryStore) Where(_ context.Context, collection, field string, value any) ([]Document, error) {
	want, err := normalize(value)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filter(collection, func(f Fields) bool {
		got, ok := f[field]
		return ok && reflect.DeepEqual(got, want)
	}), nil
}

func (m *MemoryStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; ok {
		return "", ErrAlreadyExists
	}
	if err := m.put(collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.put(collection, id, fields)
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	patch, err := m.materialize(fields)
	if err != nil {
		return err
	}
	for k, v := range patch {
		d.fields[k] = v
	}
	m.collections[collection][id] = d
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[collection], id)
	return nil
}

func (m *MemoryStore) put(collection, id string, fields Fields) error {
	stored, err := m.materialize(fields)
	if err != nil {
		return err
	}
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]memoryDoc)
		m.collections[collection] = docs
	}
	seq := m.seq + 1
	if prev, ok := docs[id]; ok {
		seq = prev.seq
	} else {
		m.seq = seq
	}
	docs[id] = memoryDoc{seq: seq, fields: stored}
	return nil
}

// materialize подставляет серверное время и приводит значения к JSON-типам,
// как это делает удалённое хранилище.
func (m *MemoryStore) materialize(fields Fields) (Fields, error) {
	plain, stamps := splitTimestamps(fields)
	out, err := ToFields(plain)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = Fields{}
	}
	now := m.now().Format(time.RFC3339Nano)
	for _, k := range stamps {
		out[k] = now
	}
	return out, nil
}

func (m *MemoryStore) filter(collection string, keep func(Fields) bool) []Document {
	docs := m.collections[collection]
	seqs := make(map[string]int64, len(docs))
	res := make([]Document, 0, len(docs))
	for id, d := range docs {
		if !keep(d.fields) {
			continue
		}
		seqs[id] = d.seq
		res = append(res, Document{ID: id, Fields: copyFields(d.fields)})
	}
	sort.Slice(res, func(i, j int) bool { return seqs[res[i].ID] < seqs[res[j].ID] })
	return res
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func copyFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
