package rlock

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/bean/option"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var (
	//go:embed lua/unlock.lua
	luaUnlock string
	//go:embed lua/refresh.lua
	luaRefresh string

	unlockScript  = redis.NewScript(luaUnlock)
	refreshScript = redis.NewScript(luaRefresh)
)

// Store 基于 Redis 的 KeyStore。
// 加锁就是 SET NX PX，天然是原子的；解锁和续约需要先比较值，所以用 lua 脚本
type Store struct {
	client redis.Cmdable
	// 单一一次访问 Redis 的超时时间
	timeout time.Duration
	// SCAN 的时候每一批的数量
	scanCount int64
}

// NewStore rdb 是 Redis 客户端
func NewStore(rdb redis.Cmdable, opts ...option.Option[Store]) *Store {
	s := &Store{
		client: rdb,
		// 正常来说，访问 Redis 是一个快的事情，所以 200ms 是绰绰有余的
		// 毕竟一般来说超过 10ms 就是 Redis 上的慢查询了
		timeout:   time.Millisecond * 200,
		scanCount: 100,
	}
	option.Apply(s, opts...)
	return s
}

func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis SET NX")
	}
	return ok, nil
}

func (s *Store) DeleteIfEqual(ctx context.Context, key, expected string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := unlockScript.Run(ctx, s.client, []string{key}, expected).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "redis 解锁脚本")
	}
	return res == 1, nil
}

func (s *Store) ExpireIfEqual(ctx context.Context, key, expected string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := refreshScript.Run(ctx, s.client, []string{key}, expected, ttl.Milliseconds()).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "redis 续约脚本")
	}
	return res == 1, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis EXISTS")
	}
	return n > 0, nil
}

// Keys 用 SCAN 而不是 KEYS，避免把 Redis 卡住
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	res := make([]string, 0, 8)
	err := s.scan(ctx, prefix, func(keys []string) error {
		res = append(res, keys...)
		return nil
	})
	return res, err
}

func (s *Store) Purge(ctx context.Context, prefix string) (int64, error) {
	var total int64
	err := s.scan(ctx, prefix, func(keys []string) error {
		n, err := s.client.Del(ctx, keys...).Result()
		if err != nil {
			return errors.Wrap(err, "redis DEL")
		}
		total += n
		return nil
	})
	return total, err
}

func (s *Store) scan(ctx context.Context, prefix string, fn func(keys []string) error) error {
	match := escapeGlob(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, s.scanCount).Result()
		if err != nil {
			return errors.Wrap(err, "redis SCAN")
		}
		if len(keys) > 0 {
			if err = fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
