package dlock

import (
	"time"

	"github.com/ecodeclub/ekit/bean/option"
	"github.com/ecodeclub/ekit/retry"
)

// WithClock 一般只在测试里面用
func WithClock(clock Clock) option.Option[StorageLockProvider] {
	return func(p *StorageLockProvider) {
		p.clock = clock
	}
}

// WithValuer 指定 token 的生成方式，每次加锁都会调用一次，必须保证唯一
func WithValuer(valuer func() string) option.Option[StorageLockProvider] {
	return func(p *StorageLockProvider) {
		p.valuer = valuer
	}
}

func WithReleaseMode(mode ReleaseMode) option.Option[StorageLockProvider] {
	return func(p *StorageLockProvider) {
		p.releaseMode = mode
	}
}

// WithReleaseRetryStrategy newStrategy 每次释放锁都会调用一次
func WithReleaseRetryStrategy(newStrategy func() retry.Strategy) option.Option[StorageLockProvider] {
	return func(p *StorageLockProvider) {
		p.releaseRetry = newStrategy
	}
}

// WithKeyPrefix 替换默认的 lock 前缀，传空字符串就是不要前缀
func WithKeyPrefix(prefix string) option.Option[StorageLockProvider] {
	return func(p *StorageLockProvider) {
		p.keys.Prefix = prefix
	}
}

func WithDetachedTimeout(timeout time.Duration) option.Option[StorageLockProvider] {
	return func(p *StorageLockProvider) {
		p.detachedTimeout = timeout
	}
}
