// Package mlock 进程内的 KeyStore，只能协调同一个进程里面的多个调度器，
// 一般用来做单机部署和测试
package mlock

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/bean/option"
	"github.com/puzpuzpuz/xsync/v3"
)

type entry struct {
	value    string
	expireAt time.Time
}

func (e entry) alive(now time.Time) bool {
	return now.Before(e.expireAt)
}

// Store 过期是惰性的，只在访问到的时候判断
type Store struct {
	entries *xsync.MapOf[string, entry]
	now     func() time.Time
}

func NewStore(opts ...option.Option[Store]) *Store {
	s := &Store{
		entries: xsync.NewMapOf[string, entry](),
		now:     time.Now,
	}
	option.Apply(s, opts...)
	return s
}

func WithNow(now func() time.Time) option.Option[Store] {
	return func(s *Store) {
		s.now = now
	}
}

func (s *Store) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := s.now()
	var ok bool
	s.entries.Compute(key, func(old entry, loaded bool) (entry, bool) {
		if loaded && old.alive(now) {
			return old, false
		}
		ok = true
		return entry{value: value, expireAt: now.Add(ttl)}, false
	})
	return ok, nil
}

func (s *Store) DeleteIfEqual(_ context.Context, key, expected string) (bool, error) {
	now := s.now()
	var ok bool
	s.entries.Compute(key, func(old entry, loaded bool) (entry, bool) {
		if !loaded {
			return old, true
		}
		if !old.alive(now) {
			return old, true
		}
		if old.value != expected {
			return old, false
		}
		ok = true
		return old, true
	})
	return ok, nil
}

func (s *Store) ExpireIfEqual(_ context.Context, key, expected string, ttl time.Duration) (bool, error) {
	now := s.now()
	var ok bool
	s.entries.Compute(key, func(old entry, loaded bool) (entry, bool) {
		if !loaded || !old.alive(now) {
			return old, true
		}
		if old.value != expected {
			return old, false
		}
		ok = true
		old.expireAt = now.Add(ttl)
		return old, false
	})
	return ok, nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	e, ok := s.entries.Load(key)
	return ok && e.alive(s.now()), nil
}

func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	now := s.now()
	res := make([]string, 0, 8)
	s.entries.Range(func(key string, e entry) bool {
		if strings.HasPrefix(key, prefix) && e.alive(now) {
			res = append(res, key)
		}
		return true
	})
	sort.Strings(res)
	return res, nil
}

func (s *Store) Purge(_ context.Context, prefix string) (int64, error) {
	var cnt int64
	s.entries.Range(func(key string, _ entry) bool {
		if strings.HasPrefix(key, prefix) {
			s.entries.Delete(key)
			cnt++
		}
		return true
	})
	return cnt, nil
}
