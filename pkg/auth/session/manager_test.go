package session

import (
	"context"
	"testing"
	"time"

	redisclient "github.com/jerkyranks/jerkyranks-backend/pkg/redis"
)

type fakeStore struct {
	entries map[string]string
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if f.entries == nil {
		f.entries = map[string]string{}
	}
	f.entries[key] = value.(string)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.entries[key]
	if !ok {
		return "", redisclient.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.entries, k)
	}
	return nil
}

type fakeKeyer struct{}

func (fakeKeyer) SessionKey(jti string) string { return "session:" + jti }

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := &Manager{store: &fakeStore{}, keyer: fakeKeyer{}, ttl: time.Hour}

	if ok, err := m.HasSession(ctx, "abc"); err != nil || ok {
		t.Fatalf("expected no session, got ok=%v err=%v", ok, err)
	}

	if err := m.Register(ctx, "abc", "user-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if ok, err := m.HasSession(ctx, "abc"); err != nil || !ok {
		t.Fatalf("expected live session, got ok=%v err=%v", ok, err)
	}

	if err := m.Revoke(ctx, "abc"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := m.HasSession(ctx, "abc"); ok {
		t.Fatal("expected session gone after revoke")
	}
}

func TestRegisterRequiresJTI(t *testing.T) {
	m := &Manager{store: &fakeStore{}, keyer: fakeKeyer{}, ttl: time.Hour}
	if err := m.Register(context.Background(), "  ", "user-1"); err == nil {
		t.Fatal("expected error for blank jti")
	}
}
