package idempotency

import (
	"context"
	"testing"
	"time"
)

type fakeStore struct {
	keys map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]string{}}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = "1"
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "sz:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func TestCheckAndMarkProcessed(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	eventID := "evt_9f2c1c0e"

	already, err := manager.CheckAndMarkProcessed(context.Background(), "notification-worker", eventID)
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed() error = %v", err)
	}
	if already {
		t.Error("first check = already processed, want fresh")
	}

	already, err = manager.CheckAndMarkProcessed(context.Background(), "notification-worker", eventID)
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed() error = %v", err)
	}
	if !already {
		t.Error("second check = fresh, want already processed")
	}
}

func TestDeleteAllowsReprocessing(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	eventID := "evt_9f2c1c0e"

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "worker", eventID); err != nil {
		t.Fatalf("CheckAndMarkProcessed() error = %v", err)
	}
	if err := manager.Delete(context.Background(), "worker", eventID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "worker", eventID)
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed() error = %v", err)
	}
	if already {
		t.Error("check after delete = already processed, want fresh")
	}
}

func TestCheckAndMarkProcessed_Validation(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", "evt_9f2c1c0e"); err == nil {
		t.Error("empty consumer accepted, want error")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "worker", ""); err == nil {
		t.Error("empty event id accepted, want error")
	}
}
