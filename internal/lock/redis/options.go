package rlock

import (
	"time"

	"github.com/ecodeclub/ekit/bean/option"
)

// WithTimeout 指定单一一次访问 Redis 的超时时间
func WithTimeout(timeout time.Duration) option.Option[Store] {
	return func(s *Store) {
		s.timeout = timeout
	}
}

func WithScanCount(count int64) option.Option[Store] {
	return func(s *Store) {
		s.scanCount = count
	}
}
