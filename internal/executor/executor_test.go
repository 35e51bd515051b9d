package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	dlock "github.com/meoying/schedlock-go/internal/lock"
	"github.com/meoying/schedlock-go/internal/lock/errs"
	mlock "github.com/meoying/schedlock-go/internal/lock/memory"
	"github.com/meoying/schedlock-go/internal/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"
)

type ExecutorTestSuite struct {
	suite.Suite
	store    *mlock.Store
	provider *dlock.StorageLockProvider
	executor *LockingTaskExecutor
	recorder *tracetest.SpanRecorder
}

func (s *ExecutorTestSuite) SetupTest() {
	s.store = mlock.NewStore()
	s.provider = dlock.NewStorageLockProvider(s.store, "app")
	s.recorder = tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.recorder))
	s.executor = NewLockingTaskExecutor(s.provider, WithTracerProvider(tp))
}

func TestExecutor(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}

func (s *ExecutorTestSuite) TestExecuteIfLocked() {
	taskErr := errors.New("mock task error")
	testCases := []struct {
		name   string
		cfg    dlock.LockConfiguration
		before func(t *testing.T)
		task   func(t *testing.T) Task

		wantResult Result
		wantErr    error
		wantRun    bool
	}{
		{
			name:   "拿到锁执行",
			cfg:    dlock.LockConfiguration{Name: "normal", LockAtMostFor: time.Minute},
			before: func(t *testing.T) {},
			task: func(t *testing.T) Task {
				return func(ctx context.Context) error {
					// 执行期间锁一直在
					ok, err := s.store.Exists(ctx, "lock:app:normal")
					require.NoError(t, err)
					assert.True(t, ok)
					return nil
				}
			},
			wantResult: Executed,
			wantRun:    true,
		},
		{
			name: "锁被别人持有",
			cfg:  dlock.LockConfiguration{Name: "held", LockAtMostFor: time.Minute},
			before: func(t *testing.T) {
				ok, err := s.store.SetIfAbsent(context.Background(), "lock:app:held", "other", time.Minute)
				require.NoError(t, err)
				require.True(t, ok)
			},
			task: func(t *testing.T) Task {
				return func(ctx context.Context) error {
					return nil
				}
			},
			wantResult: Skipped,
		},
		{
			name:   "任务失败",
			cfg:    dlock.LockConfiguration{Name: "failed", LockAtMostFor: time.Minute},
			before: func(t *testing.T) {},
			task: func(t *testing.T) Task {
				return func(ctx context.Context) error {
					return taskErr
				}
			},
			wantResult: Executed,
			wantErr:    taskErr,
			wantRun:    true,
		},
		{
			name:   "非法的配置",
			cfg:    dlock.LockConfiguration{Name: "invalid"},
			before: func(t *testing.T) {},
			task: func(t *testing.T) Task {
				return func(ctx context.Context) error {
					return nil
				}
			},
			wantResult: Skipped,
			wantErr:    errs.ErrInvalidConfiguration,
		},
	}
	for _, tc := range testCases {
		s.T().Run(tc.name, func(t *testing.T) {
			tc.before(t)
			var run atomic.Bool
			task := tc.task(t)
			res, err := s.executor.ExecuteIfLocked(context.Background(), tc.cfg, func(ctx context.Context) error {
				run.Store(true)
				return task(ctx)
			})
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.wantResult, res)
			assert.Equal(t, tc.wantRun, run.Load())
			if tc.wantRun {
				// 不管成功还是失败，锁都释放了
				ok, err := s.store.Exists(context.Background(), s.provider.KeyFor(tc.cfg.Name))
				require.NoError(t, err)
				assert.False(t, ok)
			}
		})
	}
}

func (s *ExecutorTestSuite) TestTaskErrorUnchanged() {
	taskErr := errors.New("mock task error")
	res, err := s.executor.Execute(context.Background(), "unchanged", time.Minute, 0,
		func(ctx context.Context) error {
			return taskErr
		})
	assert.Equal(s.T(), Executed, res)
	assert.Same(s.T(), taskErr, err)
}

func (s *ExecutorTestSuite) TestPanic() {
	t := s.T()
	assert.PanicsWithValue(t, "mock panic", func() {
		_, _ = s.executor.Execute(context.Background(), "panic", time.Minute, 0,
			func(ctx context.Context) error {
				panic("mock panic")
			})
	})
	ok, err := s.store.Exists(context.Background(), "lock:app:panic")
	require.NoError(t, err)
	assert.False(t, ok)
	// 释放之后可以再次执行
	res, err := s.executor.Execute(context.Background(), "panic", time.Minute, 0,
		func(ctx context.Context) error {
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, Executed, res)
}

func (s *ExecutorTestSuite) TestLockAtLeastFor() {
	t := s.T()
	start := time.Now()
	res, err := s.executor.Execute(context.Background(), "floor", time.Minute, time.Millisecond*100,
		func(ctx context.Context) error {
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, Executed, res)
	assert.True(t, time.Since(start) >= time.Millisecond*100)
	ok, err := s.store.Exists(context.Background(), "lock:app:floor")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (s *ExecutorTestSuite) TestKeepAlive() {
	t := s.T()
	executor := NewLockingTaskExecutor(s.provider, WithKeepAlive(time.Millisecond*20))
	res, err := executor.Execute(context.Background(), "long", time.Millisecond*100, 0,
		func(ctx context.Context) error {
			time.Sleep(time.Millisecond * 300)
			// 早就超过 LockAtMostFor 了，但是因为续约，锁还在
			ok, err := s.store.Exists(ctx, "lock:app:long")
			require.NoError(t, err)
			assert.True(t, ok)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, Executed, res)
	ok, err := s.store.Exists(context.Background(), "lock:app:long")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (s *ExecutorTestSuite) TestTracing() {
	t := s.T()
	_, err := s.executor.Execute(context.Background(), "traced", time.Minute, 0,
		func(ctx context.Context) error {
			return errors.New("mock task error")
		})
	require.Error(t, err)
	spans := s.recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "schedlock.execute", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.String("schedlock.name", "traced"))
	assert.Contains(t, span.Attributes(), attribute.String("schedlock.result", "executed"))
	assert.Contains(t, span.Attributes(), attribute.String("schedlock.key", "lock:app:traced"))
}

func TestExecuteIfLocked_StoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockKeyStore(ctrl)
	store.EXPECT().SetIfAbsent(gomock.Any(), "lock:app:task", gomock.Any(), time.Minute).
		Return(false, errors.New("mock store error"))
	executor := NewLockingTaskExecutor(dlock.NewStorageLockProvider(store, "app"))
	var run atomic.Bool
	res, err := executor.Execute(context.Background(), "task", time.Minute, 0,
		func(ctx context.Context) error {
			run.Store(true)
			return nil
		})
	// 宁可不执行
	assert.NoError(t, err)
	assert.Equal(t, Skipped, res)
	assert.False(t, run.Load())
}

func TestExecuteIfLocked_ReleaseFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockKeyStore(ctrl)
	store.EXPECT().SetIfAbsent(gomock.Any(), "lock:app:task", gomock.Any(), time.Minute).Return(true, nil)
	store.EXPECT().DeleteIfEqual(gomock.Any(), "lock:app:task", gomock.Any()).
		Return(false, errors.New("mock store error")).AnyTimes()
	taskErr := errors.New("mock task error")
	executor := NewLockingTaskExecutor(dlock.NewStorageLockProvider(store, "app"))
	res, err := executor.Execute(context.Background(), "task", time.Minute, 0,
		func(ctx context.Context) error {
			return taskErr
		})
	// 释放失败不能覆盖任务的错误
	assert.Same(t, taskErr, err)
	assert.Equal(t, Executed, res)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "executed", Executed.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "unknown", Result(9).String())
}
