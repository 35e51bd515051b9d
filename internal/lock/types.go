package dlock

import (
	"context"
	"time"
)

// KeyStore 是锁依赖的存储能力。整个设计唯一依赖的就是
// 同一个 key 同一时刻最多只有一条没有过期的记录，这一点由存储保证。
// 任何提供了这四个原子操作的存储都可以用来实现分布式锁。
type KeyStore interface {
	// SetIfAbsent 在 key 不存在（或者已经过期）的时候写入 value，并且设置过期时间。
	// 必须是一次原子操作，返回 true 表示写入成功
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// DeleteIfEqual 只有在 key 的值等于 expected 的时候才删除
	DeleteIfEqual(ctx context.Context, key, expected string) (bool, error)
	// ExpireIfEqual 只有在 key 的值等于 expected 的时候才重置过期时间
	ExpireIfEqual(ctx context.Context, key, expected string, ttl time.Duration) (bool, error)
	// Exists 只是用来观察的，锁的协议本身不会用到
	Exists(ctx context.Context, key string) (bool, error)
}

// Inspector 是管理和测试用的，生产上的加锁解锁流程绝对不会调用
type Inspector interface {
	// Keys 列出所有以 prefix 开头并且还没过期的 key
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Purge 删除所有以 prefix 开头的 key，返回删除的数量
	Purge(ctx context.Context, prefix string) (int64, error)
}

// LockProvider 把一次加锁请求转化为存储上的操作
type LockProvider interface {
	// TryLock 尝试加锁，不会等待，也不会重试。
	// 锁被人持有的时候返回 nil, nil，这是正常情况，并不是错误。
	TryLock(ctx context.Context, cfg LockConfiguration) (SimpleLock, error)
}

// SimpleLock 代表一把已经拿到的锁，只属于拿到它的调用者，不要跨 goroutine 共享
type SimpleLock interface {
	// Unlock 释放锁。会先保证锁至少持有 LockAtLeastFor，
	// 之后只有在存储里的值还是自己的 token 的时候才会删除。可以重复调用
	Unlock(ctx context.Context) error
	// Extend 续约，把过期时间重置为 lockAtMostFor。
	// 锁已经不是自己的了就返回 false，绝对不会覆盖别人的记录
	Extend(ctx context.Context, lockAtMostFor time.Duration) (bool, error)

	Key() string
	Token() string
	AcquiredAt() time.Time
	Configuration() LockConfiguration
}

// Clock 时间源，方便测试的时候替换
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
