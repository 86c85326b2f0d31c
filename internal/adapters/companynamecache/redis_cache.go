// Package companynamecache implements ports.CompanyNameCache over Redis,
// memoizing the normalizer's CompanyNameSet variants per account id.
package companynamecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "prospect-pipeline:company-names:"

// Client implements ports.CompanyNameCache over a Redis client.
type Client struct {
	rdb redis.Cmdable
}

// New builds a Client over the given Redis command interface — either
// *redis.Client or, in tests, a client pointed at a miniredis instance.
func New(rdb redis.Cmdable) *Client {
	return &Client{rdb: rdb}
}

// GetVariants returns the cached variants for accountID, or ok == false
// on a cache miss. A Redis error is reported, not swallowed: callers treat
// it the same as a miss since caching a CompanyNameSet is never load-bearing.
func (c *Client) GetVariants(ctx context.Context, accountID string) ([]string, bool, error) {
	raw, err := c.rdb.Get(ctx, key(accountID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("company name cache get: %w", err)
	}

	var variants []string
	if err := json.Unmarshal(raw, &variants); err != nil {
		return nil, false, fmt.Errorf("company name cache decode: %w", err)
	}
	return variants, true, nil
}

// SetVariants caches variants for accountID with the given TTL.
func (c *Client) SetVariants(ctx context.Context, accountID string, variants []string, ttl time.Duration) error {
	raw, err := json.Marshal(variants)
	if err != nil {
		return fmt.Errorf("company name cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key(accountID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("company name cache set: %w", err)
	}
	return nil
}

func key(accountID string) string {
	return keyPrefix + accountID
}
