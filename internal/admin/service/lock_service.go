package service

import (
	"context"
	"strings"

	"github.com/ecodeclub/ekit/slice"
	dlock "github.com/meoying/schedlock-go/internal/lock"
)

// Store 管理后台需要的存储能力
type Store interface {
	dlock.KeyStore
	dlock.Inspector
}

// LockService 管理后台使用，只能看到和操作当前 namespace 下面的锁
type LockService struct {
	store Store
	keys  dlock.KeyBuilder
}

func NewLockService(store Store, keys dlock.KeyBuilder) *LockService {
	return &LockService{
		store: store,
		keys:  keys,
	}
}

// List 返回当前被持有的锁，namePrefix 为空就是全部
func (svc *LockService) List(ctx context.Context, namePrefix string) ([]Lock, error) {
	prefix := svc.keys.NamespacePrefix()
	keys, err := svc.store.Keys(ctx, prefix+namePrefix)
	if err != nil {
		return nil, err
	}
	return slice.Map(keys, func(idx int, src string) Lock {
		return Lock{
			Name: strings.TrimPrefix(src, prefix),
			Key:  src,
		}
	}), nil
}

func (svc *LockService) Exists(ctx context.Context, name string) (bool, error) {
	return svc.store.Exists(ctx, svc.keys.Key(name))
}

// Purge 强制删除当前 namespace 下面所有的锁，不管是谁持有的。
// 正在执行的任务并不会停下来，所以只应该在所有节点都停止之后使用
func (svc *LockService) Purge(ctx context.Context) (int64, error) {
	return svc.store.Purge(ctx, svc.keys.NamespacePrefix())
}

type Lock struct {
	Name string
	Key  string
}
