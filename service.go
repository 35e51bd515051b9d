// Package schedlock 保证同一个定时任务在集群里面同一时刻最多只有一个节点在执行
package schedlock

import (
	"time"

	"github.com/ecodeclub/ekit/bean/option"
	"github.com/meoying/schedlock-go/internal/executor"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	"github.com/meoying/schedlock-go/internal/lock/errs"
	glock "github.com/meoying/schedlock-go/internal/lock/gorm"
	mlock "github.com/meoying/schedlock-go/internal/lock/memory"
	rlock "github.com/meoying/schedlock-go/internal/lock/redis"
	"github.com/meoying/schedlock-go/internal/service"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type (
	LockProvider      = dlock.LockProvider
	SimpleLock        = dlock.SimpleLock
	LockConfiguration = dlock.LockConfiguration
	KeyStore          = dlock.KeyStore
	ProviderOption    = option.Option[dlock.StorageLockProvider]
	ExecutorOption    = option.Option[executor.LockingTaskExecutor]

	Executor  = executor.Executor
	Task      = executor.Task
	Result    = executor.Result
	Scheduler = service.Scheduler
	// ScheduledTask 交给 Scheduler 按固定间隔调度的任务
	ScheduledTask = service.Task
)

const (
	Skipped  = executor.Skipped
	Executed = executor.Executed
)

var (
	ErrLockNotHold          = errs.ErrLockNotHold
	ErrLockReleased         = errs.ErrLockReleased
	ErrStoreUnavailable     = errs.ErrStoreUnavailable
	ErrInvalidConfiguration = errs.ErrInvalidConfiguration
)

// NewLockConfiguration lockAtLeastFor 可以是 0，但是不能超过 lockAtMostFor
func NewLockConfiguration(name string, lockAtMostFor, lockAtLeastFor time.Duration) (LockConfiguration, error) {
	return dlock.NewLockConfiguration(name, lockAtMostFor, lockAtLeastFor)
}

// NewRedisLockProvider 推荐的用法，key 的格式是 lock:<namespace>:<name>
func NewRedisLockProvider(rdb redis.Cmdable, namespace string, opts ...ProviderOption) *dlock.StorageLockProvider {
	return rlock.NewLockProvider(rdb, namespace, opts...)
}

// NewGormLockProvider 使用一张表来实现锁，会自动建表
func NewGormLockProvider(db *gorm.DB, namespace string, opts ...ProviderOption) (*dlock.StorageLockProvider, error) {
	store := glock.NewStore(db)
	if err := store.InitTable(); err != nil {
		return nil, err
	}
	return dlock.NewStorageLockProvider(store, namespace, opts...), nil
}

// NewMemoryLockProvider 只能协调同一个进程里面的任务，一般是测试用
func NewMemoryLockProvider(namespace string, opts ...ProviderOption) *dlock.StorageLockProvider {
	return dlock.NewStorageLockProvider(mlock.NewStore(), namespace, opts...)
}

func NewExecutor(provider LockProvider, opts ...ExecutorOption) *executor.LockingTaskExecutor {
	return executor.NewLockingTaskExecutor(provider, opts...)
}

func NewScheduler(exec Executor, opts ...service.SchedulerOpt) *Scheduler {
	return service.NewScheduler(exec, opts...)
}
