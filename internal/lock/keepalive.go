package dlock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecodeclub/ekit/bean/option"
	"github.com/meoying/schedlock-go/internal/lock/errs"
)

// KeepAlive 给执行时间可能超过 LockAtMostFor 的任务续约。
// 默认每 LockAtMostFor / 2 续约一次，每次都把过期时间重置为 LockAtMostFor。
// 一旦发现锁已经不是自己的了，就会停止续约，并且通过 onLost 通知调用者
type KeepAlive struct {
	lock          SimpleLock
	interval      time.Duration
	lockAtMostFor time.Duration
	onLost        func(err error)
	onError       func(err error)

	lost     atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func WithKeepAliveInterval(interval time.Duration) option.Option[KeepAlive] {
	return func(k *KeepAlive) {
		k.interval = interval
	}
}

// WithOnLost 锁丢失之后的回调，只会调用一次
func WithOnLost(fn func(err error)) option.Option[KeepAlive] {
	return func(k *KeepAlive) {
		k.onLost = fn
	}
}

// WithOnExtendError 续约的时候访问存储出错的回调，出错之后还会继续尝试
func WithOnExtendError(fn func(err error)) option.Option[KeepAlive] {
	return func(k *KeepAlive) {
		k.onError = fn
	}
}

// StartKeepAlive 立刻在后台开始续约，用完之后必须调用 Stop
func StartKeepAlive(lock SimpleLock, opts ...option.Option[KeepAlive]) *KeepAlive {
	atMost := lock.Configuration().LockAtMostFor
	k := &KeepAlive{
		lock:          lock,
		interval:      atMost / 2,
		lockAtMostFor: atMost,
		onLost:        func(err error) {},
		onError:       func(err error) {},
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	option.Apply(k, opts...)
	if k.interval <= 0 {
		k.interval = atMost
	}
	go k.run()
	return k
}

// Lost 锁是不是已经丢了
func (k *KeepAlive) Lost() bool {
	return k.lost.Load()
}

// Stop 停止续约，并且等待后台的续约结束。可以重复调用
func (k *KeepAlive) Stop() {
	k.stopOnce.Do(func() {
		close(k.stopCh)
	})
	<-k.doneCh
}

func (k *KeepAlive) run() {
	defer close(k.doneCh)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-k.stopCh:
			return
		case <-ticker.C:
			if !k.extend() {
				return
			}
		}
	}
}

// extend 返回 false 代表不需要再续约了
func (k *KeepAlive) extend() bool {
	// 单次续约的超时时间不能超过续约间隔，不然会错过下一次
	ctx, cancel := context.WithTimeout(context.Background(), k.interval)
	defer cancel()
	ok, err := k.lock.Extend(ctx, k.lockAtMostFor)
	switch {
	case err == nil && ok:
		return true
	case err == nil:
		k.lost.Store(true)
		k.onLost(errs.ErrLockNotHold)
		return false
	case errors.Is(err, errs.ErrLockReleased):
		return false
	default:
		select {
		case <-k.stopCh:
			// 已经释放了，续约失败是正常的
			return false
		default:
		}
		k.onError(err)
		return true
	}
}
