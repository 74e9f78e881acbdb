package payments

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"operation_id":"op-1"}`)
	sig := Sign("secret", payload)

	if !VerifySignature("secret", payload, sig) {
		t.Fatal("expected signature to verify")
	}
	if !VerifySignature("secret", payload, strings.ToUpper(sig)) {
		t.Fatal("hex case should not matter")
	}
	if VerifySignature("other", payload, sig) {
		t.Fatal("wrong secret must fail")
	}
	if VerifySignature("secret", []byte(`{"operation_id":"op-2"}`), sig) {
		t.Fatal("tampered body must fail")
	}
	if VerifySignature("", payload, Sign("", payload)) {
		t.Fatal("empty secret must never verify")
	}
	if VerifySignature("secret", payload, "") {
		t.Fatal("missing header must fail")
	}
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]struct{}{}}
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	guard, err := NewIdempotencyGuard(newMemoryStore(), time.Hour, "payments")
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "op-1")
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(ctx, "op-1")
	if err != nil || !seen {
		t.Fatalf("replay: seen=%v err=%v", seen, err)
	}
	if err := guard.Delete(ctx, "op-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, _ = guard.CheckAndMark(ctx, "op-1")
	if seen {
		t.Fatal("expected mark cleared after delete")
	}
	if _, err := guard.CheckAndMark(ctx, ""); err == nil {
		t.Fatal("expected error for empty operation id")
	}
}

func TestNewIdempotencyGuardValidates(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Hour, "payments"); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := NewIdempotencyGuard(newMemoryStore(), -time.Second, "payments"); err == nil {
		t.Fatal("expected ttl error")
	}
	if _, err := NewIdempotencyGuard(newMemoryStore(), time.Hour, ""); err == nil {
		t.Fatal("expected scope error")
	}
}
