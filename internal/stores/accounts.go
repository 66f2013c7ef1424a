package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/password"
	"github.com/redis/go-redis/v9"
)

const defaultAccountPrefix = "gs"

var (
	// ErrAccountsUnavailable wraps Redis transport failures.
	ErrAccountsUnavailable = errors.New("account store unavailable")
	// ErrAccountInvalid is returned by Put for records missing required fields.
	ErrAccountInvalid = errors.New("account record invalid")
	// ErrUsernameTaken is returned by Put when the username already maps to another id.
	ErrUsernameTaken = errors.New("username already taken")
)

// AccountRecord is the stored form of an account.
type AccountRecord struct {
	ID       string
	Username string
	Digest   string
}

// RedisAccounts looks accounts up in Redis by username+digest or by id.
type RedisAccounts struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisAccounts returns a store that reads keys under prefix.
func NewRedisAccounts(redisClient redis.UniversalClient, prefix string) *RedisAccounts {
	if prefix == "" {
		prefix = defaultAccountPrefix
	}
	return &RedisAccounts{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisAccounts) accountKey(id string) string {
	return s.prefix + ":acct:" + id
}

func (s *RedisAccounts) usernameKey(username string) string {
	return s.prefix + ":uname:" + username
}

// FindByCredentials returns the account whose username and digest both match.
// A missing username or a digest mismatch yields (nil, nil).
func (s *RedisAccounts) FindByCredentials(ctx context.Context, username, digest string) (*AccountRecord, error) {
	if username == "" {
		return nil, nil
	}

	id, err := s.redis.Get(ctx, s.usernameKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrAccountsUnavailable, err)
	}

	record, err := s.FindByID(ctx, id)
	if err != nil || record == nil {
		return nil, err
	}
	// Index and hash can drift if a record was rewritten under a new name.
	if record.Username != username {
		return nil, nil
	}
	if !password.Equal(record.Digest, digest) {
		return nil, nil
	}
	return record, nil
}

// FindByID loads an account by id. A missing id yields (nil, nil).
func (s *RedisAccounts) FindByID(ctx context.Context, id string) (*AccountRecord, error) {
	if id == "" {
		return nil, nil
	}

	fields, err := s.redis.HGetAll(ctx, s.accountKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountsUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	return &AccountRecord{
		ID:       id,
		Username: fields["username"],
		Digest:   fields["digest"],
	}, nil
}

// Put writes an account and its username index in one transaction.
// The index is claimed with SETNX semantics so two ids never share a username.
func (s *RedisAccounts) Put(ctx context.Context, record AccountRecord) error {
	if record.ID == "" || record.Username == "" || record.Digest == "" {
		return ErrAccountInvalid
	}

	unameKey := s.usernameKey(record.Username)
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, unameKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && existing != record.ID {
			return ErrUsernameTaken
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.accountKey(record.ID), "username", record.Username, "digest", record.Digest)
			pipe.Set(ctx, unameKey, record.ID, 0)
			return nil
		})
		return err
	}, unameKey)

	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUsernameTaken) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrAccountsUnavailable, err)
}
