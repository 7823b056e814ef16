package shared

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/sha3"
)

// TokenStore resolves API bearer tokens to principal identifiers. Tokens are
// minted by the identity provider; only their digests are stored, keyed in
// Redis with a sliding TTL.
type TokenStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, prefix string, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, prefix: prefix, ttl: ttl}
}

// Resolve returns the principal behind the given bearer token.
func (ts *TokenStore) Resolve(ctx context.Context, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	key := ts.key(token)
	principalID, err := ts.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if ts.ttl > 0 {
		_ = ts.client.Expire(ctx, key, ts.ttl).Err()
	}
	return &Principal{ID: principalID}, nil
}

// Register associates a token with a principal. Exposed for provisioning
// flows and tests; the identity provider normally writes these keys itself.
func (ts *TokenStore) Register(ctx context.Context, token, principalID string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(principalID) == "" {
		return errors.New("shared: token and principal required")
	}
	return ts.client.Set(ctx, ts.key(token), principalID, ts.ttl).Err()
}

// Revoke removes a token.
func (ts *TokenStore) Revoke(ctx context.Context, token string) error {
	return ts.client.Del(ctx, ts.key(token)).Err()
}

func (ts *TokenStore) key(token string) string {
	sum := sha3.Sum256([]byte(token))
	return ts.prefix + ":" + hex.EncodeToString(sum[:])
}
