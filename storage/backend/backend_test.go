package backend

import (
	"context"
	"testing"

	"peer-review-api/config"
	"peer-review-api/storage"
)

func TestOpenMemory(t *testing.T) {
	store, closeFn, err := Open(context.Background(), &config.Settings{StorageDriver: config.DriverMemory})
	if err != nil {
		t.Fatalf("open memory backend: %v", err)
	}
	defer closeFn()

	if _, ok := store.(storage.Locker); !ok {
		t.Fatalf("memory backend should support job locks")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, _, err := Open(context.Background(), &config.Settings{StorageDriver: "sqlite"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
