package stores

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAccounts(t *testing.T) (*RedisAccounts, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisAccounts(rdb, "test"), mr
}

func TestPutThenFindByCredentials(t *testing.T) {
	s, _ := newTestAccounts(t)
	ctx := context.Background()

	if err := s.Put(ctx, AccountRecord{ID: "acc_1", Username: "alice", Digest: "digest-a"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := s.FindByCredentials(ctx, "alice", "digest-a")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got == nil || got.ID != "acc_1" || got.Username != "alice" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestFindByCredentialsDigestMismatch(t *testing.T) {
	s, _ := newTestAccounts(t)
	ctx := context.Background()
	_ = s.Put(ctx, AccountRecord{ID: "acc_1", Username: "alice", Digest: "digest-a"})

	got, err := s.FindByCredentials(ctx, "alice", "digest-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestFindByCredentialsUnknownUser(t *testing.T) {
	s, _ := newTestAccounts(t)

	got, err := s.FindByCredentials(context.Background(), "nobody", "x")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", got, err)
	}
}

func TestFindByID(t *testing.T) {
	s, _ := newTestAccounts(t)
	ctx := context.Background()
	_ = s.Put(ctx, AccountRecord{ID: "acc_2", Username: "bob", Digest: "d"})

	got, err := s.FindByID(ctx, "acc_2")
	if err != nil || got == nil || got.Username != "bob" {
		t.Fatalf("unexpected result: (%+v, %v)", got, err)
	}

	missing, err := s.FindByID(ctx, "acc_missing")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", missing, err)
	}
}

func TestPutRejectsTakenUsername(t *testing.T) {
	s, _ := newTestAccounts(t)
	ctx := context.Background()
	_ = s.Put(ctx, AccountRecord{ID: "acc_1", Username: "alice", Digest: "d1"})

	err := s.Put(ctx, AccountRecord{ID: "acc_9", Username: "alice", Digest: "d2"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	// Same id may rewrite its own digest.
	if err := s.Put(ctx, AccountRecord{ID: "acc_1", Username: "alice", Digest: "d3"}); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	got, _ := s.FindByCredentials(ctx, "alice", "d3")
	if got == nil {
		t.Fatal("expected rewritten digest to match")
	}
}

func TestPutRejectsIncompleteRecord(t *testing.T) {
	s, _ := newTestAccounts(t)
	if err := s.Put(context.Background(), AccountRecord{ID: "acc_1"}); !errors.Is(err, ErrAccountInvalid) {
		t.Fatalf("expected ErrAccountInvalid, got %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	s, mr := newTestAccounts(t)
	mr.Close()

	if _, err := s.FindByID(context.Background(), "acc_1"); !errors.Is(err, ErrAccountsUnavailable) {
		t.Fatalf("expected ErrAccountsUnavailable, got %v", err)
	}
	if _, err := s.FindByCredentials(context.Background(), "alice", "d"); !errors.Is(err, ErrAccountsUnavailable) {
		t.Fatalf("expected ErrAccountsUnavailable, got %v", err)
	}
}
