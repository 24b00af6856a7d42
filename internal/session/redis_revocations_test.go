package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*RedisRevocationList, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	list, err := NewRedisRevocationList("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create revocation list: %v", err)
	}
	t.Cleanup(func() { _ = list.Close() })
	return list, s
}

func TestNewRedisRevocationList(t *testing.T) {
	list, _ := setupTestRedis(t)
	if err := list.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisRevocationListRejectsBadURL(t *testing.T) {
	if _, err := NewRedisRevocationList("not a url"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestRevokeAndLookup(t *testing.T) {
	list, s := setupTestRedis(t)
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("unknown token must not be revoked")
	}

	if err := list.Revoke(ctx, "jti-1", time.Hour); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	revoked, err = list.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("IsRevoked() = %v, %v; want true, nil", revoked, err)
	}

	if !s.Exists("revoked:jti-1") {
		t.Error("expected key under the revoked: prefix")
	}
	if ttl := s.TTL("revoked:jti-1"); ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}
}

func TestRevocationExpires(t *testing.T) {
	list, s := setupTestRedis(t)
	ctx := context.Background()

	if err := list.Revoke(ctx, "short", time.Second); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	s.FastForward(2 * time.Second)

	revoked, err := list.IsRevoked(ctx, "short")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Error("revocation should expire with the token")
	}
}

func TestRevokeWithNonPositiveTTLIsNoop(t *testing.T) {
	list, s := setupTestRedis(t)
	if err := list.Revoke(context.Background(), "gone", 0); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if s.Exists("revoked:gone") {
		t.Error("already expired tokens need no revocation entry")
	}
}

func TestRevocationIsolation(t *testing.T) {
	list, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := list.Revoke(ctx, "jti-1", time.Hour); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	revoked, err := list.IsRevoked(ctx, "jti-2")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Error("revoking one token must not affect another")
	}
}

func TestLookupFailsWhenRedisIsDown(t *testing.T) {
	s := miniredis.RunT(t)
	list := NewRedisRevocationListWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	t.Cleanup(func() { _ = list.Close() })
	s.Close()

	if _, err := list.IsRevoked(context.Background(), "jti-1"); err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}
