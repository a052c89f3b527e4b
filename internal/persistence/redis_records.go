package persistence

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanCount = 200

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// RedisRecords stores records as plain Redis strings under a namespace.
type RedisRecords struct {
	client    redis.Cmdable
	namespace string
}

// NewRedisRecords builds a Redis-backed record store.
func NewRedisRecords(client redis.Cmdable, namespace string) *RedisRecords {
	ns := strings.TrimSuffix(namespace, ":")
	if ns != "" {
		ns += ":"
	}
	return &RedisRecords{client: client, namespace: ns}
}

func (r *RedisRecords) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisRecords) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.namespace+key, value, 0).Err()
}

func (r *RedisRecords) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.namespace+key).Err()
}

// Keys scans the namespace for keys starting with prefix. SCAN may repeat a
// key across pages, so results are deduplicated.
func (r *RedisRecords) Keys(ctx context.Context, prefix string) ([]string, error) {
	full := r.namespace + prefix
	match := globEscaper.Replace(full) + "*"

	seen := make(map[string]struct{})
	var cursor uint64
	for {
		page, next, err := r.client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range page {
			if strings.HasPrefix(key, full) {
				seen[strings.TrimPrefix(key, r.namespace)] = struct{}{}
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
