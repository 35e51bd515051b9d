package dlock

import (
	"testing"
	"time"

	"github.com/meoying/schedlock-go/internal/lock/errs"
	"github.com/stretchr/testify/assert"
)

func TestLockConfiguration_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     LockConfiguration
		wantErr error
	}{
		{
			name: "合法",
			cfg:  LockConfiguration{Name: "task", LockAtMostFor: time.Minute, LockAtLeastFor: time.Second},
		},
		{
			name: "lockAtLeastFor 等于 lockAtMostFor",
			cfg:  LockConfiguration{Name: "task", LockAtMostFor: time.Minute, LockAtLeastFor: time.Minute},
		},
		{
			name: "不需要最短持有时间",
			cfg:  LockConfiguration{Name: "task", LockAtMostFor: time.Minute},
		},
		{
			name:    "名字为空",
			cfg:     LockConfiguration{Name: "  ", LockAtMostFor: time.Minute},
			wantErr: errs.ErrInvalidConfiguration,
		},
		{
			name:    "lockAtMostFor 为 0",
			cfg:     LockConfiguration{Name: "task"},
			wantErr: errs.ErrInvalidConfiguration,
		},
		{
			name:    "lockAtLeastFor 为负数",
			cfg:     LockConfiguration{Name: "task", LockAtMostFor: time.Minute, LockAtLeastFor: -time.Second},
			wantErr: errs.ErrInvalidConfiguration,
		},
		{
			name:    "lockAtLeastFor 大于 lockAtMostFor",
			cfg:     LockConfiguration{Name: "task", LockAtMostFor: time.Second, LockAtLeastFor: time.Minute},
			wantErr: errs.ErrInvalidConfiguration,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.cfg.Validate(), tc.wantErr)
		})
	}
}

func TestLockConfiguration_UnlockTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg, err := NewLockConfiguration("task", time.Minute, time.Second*10)
	assert.NoError(t, err)
	assert.Equal(t, now.Add(time.Second*10), cfg.UnlockTime(now))
}

func TestKeyBuilder(t *testing.T) {
	testCases := []struct {
		name       string
		builder    KeyBuilder
		wantKey    string
		wantPrefix string
	}{
		{
			name:       "默认",
			builder:    NewKeyBuilder("app"),
			wantKey:    "lock:app:task",
			wantPrefix: "lock:app:",
		},
		{
			name:       "没有命名空间",
			builder:    NewKeyBuilder(""),
			wantKey:    "lock:task",
			wantPrefix: "lock:",
		},
		{
			name:       "自定义前缀",
			builder:    KeyBuilder{Prefix: "schedlock", Namespace: "app"},
			wantKey:    "schedlock:app:task",
			wantPrefix: "schedlock:app:",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantKey, tc.builder.Key("task"))
			assert.Equal(t, tc.wantPrefix, tc.builder.NamespacePrefix())
		})
	}
}
