package rlock

import (
	"github.com/ecodeclub/ekit/bean/option"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	"github.com/redis/go-redis/v9"
)

// NewLockProvider 直接创建一个基于 Redis 的 LockProvider
func NewLockProvider(rdb redis.Cmdable, namespace string,
	opts ...option.Option[dlock.StorageLockProvider]) *dlock.StorageLockProvider {
	return dlock.NewStorageLockProvider(NewStore(rdb), namespace, opts...)
}
