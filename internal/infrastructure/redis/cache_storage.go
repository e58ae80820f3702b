package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
	"github.com/avatarctic/taskflow-assetproxy/internal/utils"
)

// CacheStorage implements ports.CacheStorage on Redis.
// Store names live in a sorted set scored by creation time; each store is a hash of
// key digest -> JSON entry. All keys share the {prefix} hash tag so transactions stay
// on one cluster slot.
type CacheStorage struct {
	r      redis.Cmdable
	prefix string
}

// NewCacheStorage creates a Redis-backed cache storage namespaced under prefix.
func NewCacheStorage(r redis.Cmdable, prefix string) *CacheStorage {
	if prefix == "" {
		prefix = "assetcache"
	}
	return &CacheStorage{r: r, prefix: prefix}
}

func (s *CacheStorage) namesKey() string { return "{" + s.prefix + "}:caches" }

func (s *CacheStorage) storeKey(name string) string { return "{" + s.prefix + "}:cache:" + name }

func (s *CacheStorage) Open(ctx context.Context, name string) (ports.CacheStore, error) {
	z := &redis.Z{Score: float64(time.Now().UnixNano()), Member: name}
	if err := s.r.ZAddNX(ctx, s.namesKey(), z).Err(); err != nil {
		return nil, fmt.Errorf("register cache %s: %w", name, err)
	}
	return &CacheStore{r: s.r, name: name, key: s.storeKey(name)}, nil
}

func (s *CacheStorage) Has(ctx context.Context, name string) (bool, error) {
	err := s.r.ZScore(ctx, s.namesKey(), name).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	pipe := s.r.TxPipeline()
	rem := pipe.ZRem(ctx, s.namesKey(), name)
	pipe.Del(ctx, s.storeKey(name))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return rem.Val() > 0, nil
}

func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	return s.r.ZRange(ctx, s.namesKey(), 0, -1).Result()
}

// CacheStore is one named store held in a Redis hash.
type CacheStore struct {
	r    redis.Cmdable
	name string
	key  string
}

func (c *CacheStore) Name() string { return c.name }

func (c *CacheStore) Get(ctx context.Context, url string) (*asset.Entry, bool, error) {
	val, err := c.r.HGet(ctx, c.key, utils.KeyDigest(url)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e asset.Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, false, fmt.Errorf("decode entry %s: %w", url, err)
	}
	return &e, true, nil
}

func (c *CacheStore) Put(ctx context.Context, entry *asset.Entry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.r.HSet(ctx, c.key, utils.KeyDigest(entry.URL), b).Err()
}

// PutAll writes every entry inside one MULTI/EXEC.
func (c *CacheStore) PutAll(ctx context.Context, entries []*asset.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(entries)*2)
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		values = append(values, utils.KeyDigest(e.URL), b)
	}
	pipe := c.r.TxPipeline()
	pipe.HSet(ctx, c.key, values...)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *CacheStore) Delete(ctx context.Context, url string) (bool, error) {
	n, err := c.r.HDel(ctx, c.key, utils.KeyDigest(url)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *CacheStore) Keys(ctx context.Context) ([]string, error) {
	vals, err := c.r.HVals(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(vals))
	for _, v := range vals {
		var e asset.Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		keys = append(keys, e.URL)
	}
	sort.Strings(keys)
	return keys, nil
}
