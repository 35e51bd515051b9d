package test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ecodeclub/ekit/bean/option"
	"github.com/meoying/schedlock-go/internal/executor"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	mlock "github.com/meoying/schedlock-go/internal/lock/memory"
	rlock "github.com/meoying/schedlock-go/internal/lock/redis"
	"github.com/redis/go-redis/v9"
)

const Namespace = "my-app"

// Store 测试的时候需要能列出和清理所有的 key
type Store interface {
	dlock.KeyStore
	dlock.Inspector
}

// Harness 直接构造存储、LockProvider 和执行器，不依赖任何注入框架
type Harness struct {
	Store    Store
	Provider *dlock.StorageLockProvider
	Executor *executor.LockingTaskExecutor
	Counter  *Counter
	Service  *LockedService
}

func NewHarness(store Store, opts ...option.Option[dlock.StorageLockProvider]) *Harness {
	provider := dlock.NewStorageLockProvider(store, Namespace, opts...)
	exec := executor.NewLockingTaskExecutor(provider)
	counter := &Counter{}
	return &Harness{
		Store:    store,
		Provider: provider,
		Executor: exec,
		Counter:  counter,
		Service:  NewLockedService(exec, counter),
	}
}

// NewRedisHarness 使用 miniredis，测试结束的时候会自动关闭
func NewRedisHarness(t *testing.T) (*Harness, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
	})
	return NewHarness(rlock.NewStore(rdb)), mr
}

func NewMemoryHarness() *Harness {
	return NewHarness(mlock.NewStore())
}

func (h *Harness) IsLockExist(ctx context.Context, name string) (bool, error) {
	return h.Store.Exists(ctx, h.Provider.KeyFor(name))
}

func (h *Harness) Keys(ctx context.Context) ([]string, error) {
	return h.Store.Keys(ctx, "")
}

// Reset 清空计数，删除所有的 key
func (h *Harness) Reset(ctx context.Context) error {
	h.Counter.Reset()
	_, err := h.Store.Purge(ctx, "")
	return err
}
