package glock

import (
	"time"

	"github.com/ecodeclub/ekit/bean/option"
)

func WithTableName(tableName string) option.Option[Store] {
	return func(s *Store) {
		s.tableName = tableName
	}
}

func WithMode(mode string) option.Option[Store] {
	return func(s *Store) {
		s.mode = mode
	}
}

// WithTimeout 指定单一一次访问数据库的超时时间
func WithTimeout(timeout time.Duration) option.Option[Store] {
	return func(s *Store) {
		s.timeout = timeout
	}
}

// WithNow 替换时间源。过期是靠比较 expiration 字段实现的，
// 所以所有节点的时钟偏差要远小于 LockAtMostFor
func WithNow(now func() time.Time) option.Option[Store] {
	return func(s *Store) {
		s.now = now
	}
}
