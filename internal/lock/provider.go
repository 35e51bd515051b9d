package dlock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ecodeclub/ekit/bean/option"
	"github.com/ecodeclub/ekit/retry"
	"github.com/google/uuid"
	"github.com/meoying/schedlock-go/internal/lock/errs"
)

// ReleaseMode 决定释放锁的时候，还没到 LockAtLeastFor 怎么办
type ReleaseMode uint8

const (
	// ReleaseModeWait 阻塞到 LockAtLeastFor，再删除 key
	ReleaseModeWait ReleaseMode = iota
	// ReleaseModeDefer 不阻塞，把 key 的过期时间缩短为剩下的时间，让存储到点删除
	ReleaseModeDefer
)

func (m ReleaseMode) String() string {
	switch m {
	case ReleaseModeWait:
		return "wait"
	case ReleaseModeDefer:
		return "defer"
	default:
		return "unknown"
	}
}

// StorageLockProvider 基于 KeyStore 的 LockProvider。
// 它自身没有任何状态，所以多个实例、多个进程共用同一个存储完全没问题。
// 它也不会在客户端加任何互斥锁，因为那没办法跨进程协调
type StorageLockProvider struct {
	store  KeyStore
	keys   KeyBuilder
	clock  Clock
	valuer func() string

	releaseMode ReleaseMode
	// 释放锁失败的时候的重试策略。Strategy 是有状态的，所以每次释放都要创建一个新的
	releaseRetry func() retry.Strategy
	// 原本的 ctx 已经结束了，还需要访问存储的时候使用的超时时间
	detachedTimeout time.Duration
}

// NewStorageLockProvider 创建一个 LockProvider
// namespace 一般是应用的名字，同一个应用的不同实例必须用同一个 namespace
// 默认情况下使用 uuid 作为 token，释放的时候阻塞等待 LockAtLeastFor
func NewStorageLockProvider(store KeyStore, namespace string,
	opts ...option.Option[StorageLockProvider]) *StorageLockProvider {
	p := &StorageLockProvider{
		store: store,
		keys:  NewKeyBuilder(namespace),
		clock: SystemClock{},
		valuer: func() string {
			return uuid.New().String()
		},
		releaseMode: ReleaseModeWait,
		releaseRetry: func() retry.Strategy {
			// 释放锁是尽力而为的，失败了也会等它自然过期，所以重试几次就够了
			s, _ := retry.NewExponentialBackoffRetryStrategy(50*time.Millisecond, 500*time.Millisecond, 3)
			return s
		},
		detachedTimeout: time.Second,
	}
	option.Apply(p, opts...)
	return p
}

// KeyFor 任务对应的 key
func (p *StorageLockProvider) KeyFor(name string) string {
	return p.keys.Key(name)
}

// KeyPrefix 当前 namespace 下所有 key 的公共前缀
func (p *StorageLockProvider) KeyPrefix() string {
	return p.keys.NamespacePrefix()
}

// TryLock 只会执行一次 SetIfAbsent。
// 先判断存不存在再写入是两次调用，中间有并发问题，所以绝对不能那么写
func (p *StorageLockProvider) TryLock(ctx context.Context, cfg LockConfiguration) (SimpleLock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := p.keys.Key(cfg.Name)
	token := p.valuer()
	// 在写入之前取时间，这样 LockAtLeastFor 只会偏长，不会偏短
	acquiredAt := p.clock.Now()
	ok, err := p.store.SetIfAbsent(ctx, key, token, cfg.LockAtMostFor)
	if err != nil {
		return nil, fmt.Errorf("%w: 加锁 %s: %w", errs.ErrStoreUnavailable, key, err)
	}
	if !ok {
		return nil, nil
	}
	return &storageLock{
		provider:   p,
		cfg:        cfg,
		key:        key,
		token:      token,
		acquiredAt: acquiredAt,
	}, nil
}

type storageLock struct {
	provider   *StorageLockProvider
	cfg        LockConfiguration
	key        string
	token      string
	acquiredAt time.Time
	released   atomic.Bool
}

func (l *storageLock) Key() string {
	return l.key
}

func (l *storageLock) Token() string {
	return l.token
}

func (l *storageLock) AcquiredAt() time.Time {
	return l.acquiredAt
}

func (l *storageLock) Configuration() LockConfiguration {
	return l.cfg
}

func (l *storageLock) Extend(ctx context.Context, lockAtMostFor time.Duration) (bool, error) {
	if l.released.Load() {
		return false, errs.ErrLockReleased
	}
	if lockAtMostFor <= 0 {
		return false, fmt.Errorf("%w: 续约时间必须大于 0", errs.ErrInvalidConfiguration)
	}
	ok, err := l.provider.store.ExpireIfEqual(ctx, l.key, l.token, lockAtMostFor)
	if err != nil {
		return false, fmt.Errorf("%w: 续约 %s: %w", errs.ErrStoreUnavailable, l.key, err)
	}
	return ok, nil
}

// Unlock 只有第一次调用会真的访问存储
func (l *storageLock) Unlock(ctx context.Context) error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	if ctx.Err() != nil {
		// 调用者的 ctx 已经结束了，锁还是要释放的
		dctx, cancel := l.detach(ctx)
		defer cancel()
		return l.expireAtFloor(dctx)
	}
	remaining := l.remaining()
	if remaining <= 0 {
		return l.release(ctx)
	}
	if l.provider.releaseMode == ReleaseModeDefer {
		return l.expireAtFloor(ctx)
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return l.release(ctx)
	case <-ctx.Done():
		// 等不下去了，那就让存储在 LockAtLeastFor 到点的时候删除
		dctx, cancel := l.detach(ctx)
		defer cancel()
		return l.expireAtFloor(dctx)
	}
}

func (l *storageLock) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), l.provider.detachedTimeout)
}

func (l *storageLock) remaining() time.Duration {
	return l.cfg.UnlockTime(l.acquiredAt).Sub(l.provider.clock.Now())
}

// release 值不匹配说明锁已经过期被别人拿走了，这时候什么也不做
func (l *storageLock) release(ctx context.Context) error {
	err := retry.Retry(ctx, l.provider.releaseRetry(), func() error {
		_, err := l.provider.store.DeleteIfEqual(ctx, l.key, l.token)
		return err
	})
	if err != nil {
		return fmt.Errorf("释放锁 %s 失败: %w", l.key, err)
	}
	return nil
}

func (l *storageLock) expireAtFloor(ctx context.Context) error {
	remaining := l.remaining()
	if remaining <= 0 {
		return l.release(ctx)
	}
	err := retry.Retry(ctx, l.provider.releaseRetry(), func() error {
		_, err := l.provider.store.ExpireIfEqual(ctx, l.key, l.token, remaining)
		return err
	})
	if err != nil {
		return fmt.Errorf("缩短锁 %s 的过期时间失败: %w", l.key, err)
	}
	return nil
}
