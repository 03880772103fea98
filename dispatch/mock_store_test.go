package dispatch

import (
	"errors"

	"mock-fcm/store"
)

// FailingStore wraps a MemoryStore and fails the selected operations.
type FailingStore struct {
	*store.MemoryStore
	FailLookup bool
	FailAppend bool
}

func NewFailingStore() *FailingStore {
	return &FailingStore{MemoryStore: store.NewMemoryStore()}
}

func (f *FailingStore) Lookup(token string) (store.ErrorConfig, bool, error) {
	if f.FailLookup {
		return store.ErrorConfig{}, false, errors.New("mock lookup error")
	}
	return f.MemoryStore.Lookup(token)
}

func (f *FailingStore) Append(rec store.ActivityRecord) error {
	if f.FailAppend {
		return errors.New("mock append error")
	}
	return f.MemoryStore.Append(rec)
}
