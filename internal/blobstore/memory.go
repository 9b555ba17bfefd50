package blobstore

import (
	"context"
	"fmt"
	"io"
	"sync"
)

const memoryScheme = "memory://"

// MemoryStore хранит объекты в памяти процесса.
// UploadErr и DeleteErr позволяют в тестах смоделировать сбои удалённой стороны.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	UploadErr error
	DeleteErr error
}

// NewMemoryStore создаёт пустое хранилище объектов в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(_ context.Context, publicID string, r io.Reader) (string, error) {
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}

	u := memoryScheme + publicID

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[u] = data
	return u, nil
}

func (m *MemoryStore) Delete(_ context.Context, rawURL string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[rawURL]; !ok {
		return fmt.Errorf("%w: %s", ErrNotManaged, rawURL)
	}
	delete(m.objects, rawURL)
	return nil
}

// Exists сообщает, хранится ли объект по ссылке.
func (m *MemoryStore) Exists(rawURL string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[rawURL]
	return ok
}

// Len возвращает число хранимых объектов.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.objects)
}
