package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/internal/stores"
	"github.com/redis/go-redis/v9"
)

// ErrUsernameTaken is returned by RedisAccountStore.Put when another id owns the username.
var ErrUsernameTaken = stores.ErrUsernameTaken

// RedisAccountStore is an [AccountStore] backed by Redis hashes. It also
// exposes Put so operators can seed accounts; it is not a user database.
type RedisAccountStore struct {
	inner *stores.RedisAccounts
}

// NewRedisAccountStore returns a store reading keys under prefix.
func NewRedisAccountStore(client redis.UniversalClient, prefix string) *RedisAccountStore {
	return &RedisAccountStore{inner: stores.NewRedisAccounts(client, prefix)}
}

// FindByCredentials implements AccountStore.
func (s *RedisAccountStore) FindByCredentials(ctx context.Context, username, passwordDigest string) (*Account, error) {
	rec, err := s.inner.FindByCredentials(ctx, username, passwordDigest)
	return accountFromRecord(rec), err
}

// FindByID implements AccountStore.
func (s *RedisAccountStore) FindByID(ctx context.Context, id string) (*Account, error) {
	rec, err := s.inner.FindByID(ctx, id)
	return accountFromRecord(rec), err
}

// Put stores account. PasswordDigest must already be the engine's digest, see [Engine.Hash].
func (s *RedisAccountStore) Put(ctx context.Context, account Account) error {
	err := s.inner.Put(ctx, stores.AccountRecord{
		ID:       account.ID,
		Username: account.Username,
		Digest:   account.PasswordDigest,
	})
	if errors.Is(err, stores.ErrAccountsUnavailable) {
		return errors.Join(ErrAccountStoreUnavailable, err)
	}
	return err
}

func accountFromRecord(rec *stores.AccountRecord) *Account {
	if rec == nil {
		return nil
	}
	return &Account{
		ID:             rec.ID,
		Username:       rec.Username,
		PasswordDigest: rec.Digest,
	}
}
