package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minelance/minelance-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "reports:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected first request allowed, got allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].key != "minelance:rate_limit:reports:user-1" {
		t.Fatalf("expected expire on first increment, got %+v", mock.expireCalls)
	}

	if allowed, _, _ = client.FixedWindowAllow(ctx, "reports:user-1", 2, time.Minute); !allowed {
		t.Fatalf("second request should be allowed")
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should not be set again")
	}
	if allowed, _, _ = client.FixedWindowAllow(ctx, "reports:user-1", 2, time.Minute); allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.IdempotencyKey("payments", "op-1")

	set, err := client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || !set {
		t.Fatalf("expected first SetNX to set, got %v %v", set, err)
	}
	if set, _ = client.SetNX(ctx, key, "1", time.Hour); set {
		t.Fatalf("second SetNX must not set")
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if set, _ = client.SetNX(ctx, key, "1", time.Hour); !set {
		t.Fatalf("SetNX after Del should set")
	}
}

func TestGetMissingKey(t *testing.T) {
	store := newMockCmdable()
	client := &Client{store: store}

	value, err := client.Get(context.Background(), "minelance:absent")
	if err != nil || value != "" {
		t.Fatalf("expected empty value for missing key, got %q err=%v", value, err)
	}

	store.data["minelance:present"] = "stored"
	value, err = client.Get(context.Background(), "minelance:present")
	if err != nil || value != "stored" {
		t.Fatalf("expected stored value, got %q err=%v", value, err)
	}
}

func TestPublish(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}
	channel := client.NotificationChannel("user-9")

	if err := client.Publish(context.Background(), channel, []byte(`{"type":"offer_accepted"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := mock.published[channel]; len(got) != 1 || got[0] != `{"type":"offer_accepted"}` {
		t.Fatalf("unexpected published payloads %v", got)
	}
}

func TestNilStore(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error for uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil raw should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("payments", "op"); got != "minelance:idempotency:payments:op" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.IdempotencyKey("", " op "); got != "minelance:idempotency:op" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
	if got := client.NotificationChannel("u"); got != "minelance:notifications:u" {
		t.Fatalf("unexpected channel %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6380/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	published   map[string][]string
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:      make(map[string]string),
		incr:      make(map[string]int64),
		published: make(map[string][]string),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	value, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: ttl})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	switch v := message.(type) {
	case []byte:
		m.published[channel] = append(m.published[channel], string(v))
	default:
		m.published[channel] = append(m.published[channel], fmt.Sprint(v))
	}
	return redis.NewIntResult(1, nil)
}
