package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Memory keeps objects in process. Used for local runs and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object

	// FailUpload, when set, is consulted before each upload.
	FailUpload func(key string) error
}

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

func NewMemory() *Memory {
	return &Memory{objects: map[string]Object{}}
}

func (m *Memory) Upload(ctx context.Context, key string, r io.Reader, contentType string, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailUpload != nil {
		if err := m.FailUpload(key); err != nil {
			return err
		}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: b, ContentType: contentType}
	return nil
}

func (m *Memory) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", fmt.Errorf("memory sign: %s not found", key)
	}
	return "memory://" + url.PathEscape(key) + "?expires=" + fmt.Sprint(int(ttl.Seconds())), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) BulkDelete(ctx context.Context, keys []string) error {
	for _, k := range keys {
		_ = m.Delete(ctx, k)
	}
	return nil
}

// Get returns a stored object.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
