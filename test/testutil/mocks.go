package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/TheMichaelB/casevault/internal/storage"
)

// ErrInjected is returned by FaultyStore for failing operations.
var ErrInjected = errors.New("injected store failure")

// FaultyStore wraps a BlobStore and fails selected operations on demand.
type FaultyStore struct {
	storage.BlobStore

	mu       sync.Mutex
	failGet  map[string]bool
	failSet  map[string]bool
	setCalls map[string]int
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner storage.BlobStore) *FaultyStore {
	return &FaultyStore{
		BlobStore: inner,
		failGet:   make(map[string]bool),
		failSet:   make(map[string]bool),
		setCalls:  make(map[string]int),
	}
}

// FailGet makes reads of id fail until cleared.
func (f *FaultyStore) FailGet(id string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet[id] = fail
}

// FailSet makes writes of id fail until cleared.
func (f *FaultyStore) FailSet(id string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet[id] = fail
}

// SetCalls returns how many writes of id were attempted.
func (f *FaultyStore) SetCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls[id]
}

func (f *FaultyStore) Get(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	fail := f.failGet[id]
	f.mu.Unlock()

	if fail {
		return nil, ErrInjected
	}
	return f.BlobStore.Get(ctx, id)
}

func (f *FaultyStore) Set(ctx context.Context, id string, value []byte) error {
	f.mu.Lock()
	f.setCalls[id]++
	fail := f.failSet[id]
	f.mu.Unlock()

	if fail {
		return ErrInjected
	}
	return f.BlobStore.Set(ctx, id, value)
}

func (f *FaultyStore) SetIfAbsent(ctx context.Context, id string, value []byte) ([]byte, bool, error) {
	f.mu.Lock()
	f.setCalls[id]++
	fail := f.failSet[id]
	f.mu.Unlock()

	if fail {
		return nil, false, ErrInjected
	}
	return f.BlobStore.SetIfAbsent(ctx, id, value)
}

// MockBlobStore mocks blob storage operations.
type MockBlobStore struct {
	mock.Mock
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{}
}

func (m *MockBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)

	if data := args.Get(0); data != nil {
		return data.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBlobStore) Set(ctx context.Context, id string, value []byte) error {
	args := m.Called(ctx, id, value)
	return args.Error(0)
}

func (m *MockBlobStore) SetIfAbsent(ctx context.Context, id string, value []byte) ([]byte, bool, error) {
	args := m.Called(ctx, id, value)

	if data := args.Get(0); data != nil {
		return data.([]byte), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *MockBlobStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBlobStore) Close() error {
	return nil
}
