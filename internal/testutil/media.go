package testutil

import (
	"context"
	"sync"
	"time"
)

// MockMediaStore is an in-memory storage.MediaStore. URLs embed the key so
// tests can assert on them.
type MockMediaStore struct {
	mu          sync.Mutex
	Deleted     []string
	DeleteError error
}

func NewMockMediaStore() *MockMediaStore {
	return &MockMediaStore{}
}

func (m *MockMediaStore) GeneratePresignedUploadURL(ctx context.Context, objectKey, contentType string, expires time.Duration) (string, error) {
	return "https://media.test/put/" + objectKey, nil
}

func (m *MockMediaStore) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	return "https://media.test/get/" + objectKey, nil
}

func (m *MockMediaStore) DeleteObject(ctx context.Context, objectKey string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, objectKey)
	return nil
}

func (m *MockMediaStore) DeletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Deleted...)
}
