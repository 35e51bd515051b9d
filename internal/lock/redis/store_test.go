package rlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	store *Store
}

func (s *StoreTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.rdb = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.store = NewStore(s.rdb, WithTimeout(time.Second), WithScanCount(2))
}

func (s *StoreTestSuite) TearDownTest() {
	_ = s.rdb.Close()
}

func TestStore(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) TestSetIfAbsent() {
	testCases := []struct {
		name   string
		key    string
		before func(t *testing.T)
		after  func(t *testing.T)

		wantOk bool
	}{
		{
			name:   "加锁成功",
			key:    "set-key",
			before: func(t *testing.T) {},
			after: func(t *testing.T) {
				val, err := s.mr.Get("set-key")
				require.NoError(t, err)
				assert.Equal(t, "abc", val)
				assert.Equal(t, time.Minute, s.mr.TTL("set-key"))
			},
			wantOk: true,
		},
		{
			name: "锁被人持有",
			key:  "held-key",
			before: func(t *testing.T) {
				require.NoError(t, s.mr.Set("held-key", "123"))
				s.mr.SetTTL("held-key", time.Minute)
			},
			after: func(t *testing.T) {
				val, err := s.mr.Get("held-key")
				require.NoError(t, err)
				assert.Equal(t, "123", val)
			},
		},
		{
			// 原持有人崩溃了，锁自然过期
			name: "锁已经过期",
			key:  "expired-key",
			before: func(t *testing.T) {
				require.NoError(t, s.mr.Set("expired-key", "123"))
				s.mr.SetTTL("expired-key", time.Second)
				s.mr.FastForward(2 * time.Second)
			},
			after: func(t *testing.T) {
				val, err := s.mr.Get("expired-key")
				require.NoError(t, err)
				assert.Equal(t, "abc", val)
			},
			wantOk: true,
		},
	}
	for _, tc := range testCases {
		s.T().Run(tc.name, func(t *testing.T) {
			tc.before(t)
			ok, err := s.store.SetIfAbsent(context.Background(), tc.key, "abc", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, tc.wantOk, ok)
			tc.after(t)
		})
	}
}

func (s *StoreTestSuite) TestDeleteIfEqual() {
	testCases := []struct {
		name   string
		key    string
		before func(t *testing.T)
		after  func(t *testing.T)

		wantOk bool
	}{
		{
			name: "解锁成功",
			key:  "unlock-key",
			before: func(t *testing.T) {
				require.NoError(t, s.mr.Set("unlock-key", "abc"))
			},
			after: func(t *testing.T) {
				assert.False(t, s.mr.Exists("unlock-key"))
			},
			wantOk: true,
		},
		{
			name: "值不匹配",
			key:  "other-key",
			before: func(t *testing.T) {
				require.NoError(t, s.mr.Set("other-key", "123"))
			},
			after: func(t *testing.T) {
				val, err := s.mr.Get("other-key")
				require.NoError(t, err)
				assert.Equal(t, "123", val)
			},
		},
		{
			name:   "锁不存在",
			key:    "missing-key",
			before: func(t *testing.T) {},
			after: func(t *testing.T) {
				assert.False(t, s.mr.Exists("missing-key"))
			},
		},
	}
	for _, tc := range testCases {
		s.T().Run(tc.name, func(t *testing.T) {
			tc.before(t)
			ok, err := s.store.DeleteIfEqual(context.Background(), tc.key, "abc")
			require.NoError(t, err)
			assert.Equal(t, tc.wantOk, ok)
			tc.after(t)
		})
	}
}

func (s *StoreTestSuite) TestExpireIfEqual() {
	testCases := []struct {
		name   string
		key    string
		before func(t *testing.T)
		after  func(t *testing.T)

		wantOk bool
	}{
		{
			name: "续约成功",
			key:  "refresh-key",
			before: func(t *testing.T) {
				require.NoError(t, s.mr.Set("refresh-key", "abc"))
				s.mr.SetTTL("refresh-key", time.Second*10)
			},
			after: func(t *testing.T) {
				assert.Equal(t, time.Minute, s.mr.TTL("refresh-key"))
			},
			wantOk: true,
		},
		{
			name: "锁被人持有",
			key:  "refresh-other-key",
			before: func(t *testing.T) {
				require.NoError(t, s.mr.Set("refresh-other-key", "456"))
				s.mr.SetTTL("refresh-other-key", time.Second*10)
			},
			after: func(t *testing.T) {
				assert.Equal(t, time.Second*10, s.mr.TTL("refresh-other-key"))
			},
		},
		{
			name:   "锁不存在",
			key:    "refresh-missing-key",
			before: func(t *testing.T) {},
			after: func(t *testing.T) {
				assert.False(t, s.mr.Exists("refresh-missing-key"))
			},
		},
	}
	for _, tc := range testCases {
		s.T().Run(tc.name, func(t *testing.T) {
			tc.before(t)
			ok, err := s.store.ExpireIfEqual(context.Background(), tc.key, "abc", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, tc.wantOk, ok)
			tc.after(t)
		})
	}
}

func (s *StoreTestSuite) TestExists() {
	t := s.T()
	ctx := context.Background()
	ok, err := s.store.Exists(ctx, "exists-key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.mr.Set("exists-key", "abc"))
	ok, err = s.store.Exists(ctx, "exists-key")
	require.NoError(t, err)
	assert.True(t, ok)
}

func (s *StoreTestSuite) TestKeysAndPurge() {
	t := s.T()
	ctx := context.Background()
	for _, key := range []string{"lock:app:a", "lock:app:b", "lock:app:c", "lock:other:a", "plain"} {
		require.NoError(t, s.mr.Set(key, "abc"))
	}

	keys, err := s.store.Keys(ctx, "lock:app:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lock:app:a", "lock:app:b", "lock:app:c"}, keys)

	n, err := s.store.Purge(ctx, "lock:app:")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.ElementsMatch(t, []string{"lock:other:a", "plain"}, s.mr.Keys())

	n, err = s.store.Purge(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, s.mr.Keys())
}

func (s *StoreTestSuite) TestStoreUnavailable() {
	t := s.T()
	s.mr.Close()
	ctx := context.Background()
	_, err := s.store.SetIfAbsent(ctx, "down-key", "abc", time.Minute)
	assert.Error(t, err)
	_, err = s.store.DeleteIfEqual(ctx, "down-key", "abc")
	assert.Error(t, err)
	_, err = s.store.ExpireIfEqual(ctx, "down-key", "abc", time.Minute)
	assert.Error(t, err)
	_, err = s.store.Exists(ctx, "down-key")
	assert.Error(t, err)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `lock:app:`, escapeGlob("lock:app:"))
	assert.Equal(t, `lock:\*:\?\[x\]`, escapeGlob("lock:*:?[x]"))
}
