package dlock

import (
	"fmt"
	"strings"
	"time"

	"github.com/meoying/schedlock-go/internal/lock/errs"
)

// DefaultKeyPrefix 所有锁的 key 都以它开头
const DefaultKeyPrefix = "lock"

// LockConfiguration 一次加锁的配置
type LockConfiguration struct {
	// Name 任务的名字，同名的任务互斥
	Name string
	// LockAtMostFor 锁最多持有多久。持有者崩溃了之后，
	// 存储会在这个时间之后自动删除锁，所以它要比任务的正常执行时间长得多
	LockAtMostFor time.Duration
	// LockAtLeastFor 锁至少持有多久。任务执行得太快的时候，
	// 可以防止别的节点因为时钟偏差马上又执行一遍
	LockAtLeastFor time.Duration
}

func NewLockConfiguration(name string, lockAtMostFor, lockAtLeastFor time.Duration) (LockConfiguration, error) {
	cfg := LockConfiguration{
		Name:           name,
		LockAtMostFor:  lockAtMostFor,
		LockAtLeastFor: lockAtLeastFor,
	}
	return cfg, cfg.Validate()
}

// Validate LockAtLeastFor 可以是 0，代表不需要最短持有时间
func (c LockConfiguration) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("%w: 名字不能为空", errs.ErrInvalidConfiguration)
	case c.LockAtMostFor <= 0:
		return fmt.Errorf("%w: lockAtMostFor 必须大于 0, 名字 %s", errs.ErrInvalidConfiguration, c.Name)
	case c.LockAtLeastFor < 0:
		return fmt.Errorf("%w: lockAtLeastFor 不能小于 0, 名字 %s", errs.ErrInvalidConfiguration, c.Name)
	case c.LockAtLeastFor > c.LockAtMostFor:
		return fmt.Errorf("%w: lockAtLeastFor %s 大于 lockAtMostFor %s, 名字 %s",
			errs.ErrInvalidConfiguration, c.LockAtLeastFor, c.LockAtMostFor, c.Name)
	}
	return nil
}

// UnlockTime 最早可以释放锁的时间
func (c LockConfiguration) UnlockTime(acquiredAt time.Time) time.Time {
	return acquiredAt.Add(c.LockAtLeastFor)
}

// KeyBuilder 生成 lock:<namespace>:<name> 格式的 key
type KeyBuilder struct {
	Prefix    string
	Namespace string
}

func NewKeyBuilder(namespace string) KeyBuilder {
	return KeyBuilder{Prefix: DefaultKeyPrefix, Namespace: namespace}
}

func (b KeyBuilder) Key(name string) string {
	return b.NamespacePrefix() + name
}

// NamespacePrefix 当前命名空间下所有 key 的公共前缀，管理接口用它来列出和清理 key
func (b KeyBuilder) NamespacePrefix() string {
	var sb strings.Builder
	if b.Prefix != "" {
		sb.WriteString(b.Prefix)
		sb.WriteByte(':')
	}
	if b.Namespace != "" {
		sb.WriteString(b.Namespace)
		sb.WriteByte(':')
	}
	return sb.String()
}
