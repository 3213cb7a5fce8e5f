package kv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisStore(t *testing.T, sessionID string) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr(), sessionID)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := setupRedisStore(t, "session-1")
	ctx := context.Background()

	if err := store.Put(ctx, "track_changes", []byte(`{"mode":"editing"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "track_changes")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"mode":"editing"}` {
		t.Errorf("value = %s", got)
	}

	if err := store.Delete(ctx, "track_changes"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "track_changes"); err != ErrNotFound {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestRedisStorePing(t *testing.T) {
	store := setupRedisStore(t, "session-1")
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestRedisStoreSessionIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	a := NewRedisStoreWithClient(client, "session-a")
	b := NewRedisStoreWithClient(client, "session-b")
	ctx := context.Background()

	if err := a.Put(ctx, "user_permissions", []byte("a-state")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := b.Get(ctx, "user_permissions"); err != ErrNotFound {
		t.Errorf("session b sees session a state: %v", err)
	}
	got, err := a.Get(ctx, "user_permissions")
	if err != nil || string(got) != "a-state" {
		t.Errorf("session a state = %s, %v", got, err)
	}
}

func TestRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not-a-url", "session-1"); err == nil {
		t.Error("NewRedisStore accepted a bad URL")
	}
}
