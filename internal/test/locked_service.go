package test

import (
	"context"
	"errors"
	"time"

	"github.com/meoying/schedlock-go/internal/executor"
)

const (
	TestLockName      = "test"
	ExceptionLockName = "testException"

	// 要比所有场景里面最长的任务都长
	testLockAtMostFor = time.Second * 5
	// 正常的任务基本不需要最短持有时间，这样连续调用都能拿到锁
	testLockAtLeastFor = time.Millisecond * 10
	// 失败的任务会立刻返回，靠最短持有时间让锁存在一段时间
	exceptionLockAtLeastFor = time.Millisecond * 300
)

var ErrTestException = errors.New("mock task exception")

// LockedService 模拟业务里面被锁保护的方法
type LockedService struct {
	executor *executor.LockingTaskExecutor
	counter  *Counter
}

func NewLockedService(exec *executor.LockingTaskExecutor, counter *Counter) *LockedService {
	return &LockedService{
		executor: exec,
		counter:  counter,
	}
}

// Test 拿到锁之后执行 d 这么久，执行了就计数
func (s *LockedService) Test(ctx context.Context, d time.Duration) (executor.Result, error) {
	return s.executor.Execute(ctx, TestLockName, testLockAtMostFor, testLockAtLeastFor,
		func(ctx context.Context) error {
			s.counter.Inc()
			time.Sleep(d)
			return nil
		})
}

// TestException 拿到锁之后立刻失败
func (s *LockedService) TestException(ctx context.Context) (executor.Result, error) {
	return s.executor.Execute(ctx, ExceptionLockName, testLockAtMostFor, exceptionLockAtLeastFor,
		func(ctx context.Context) error {
			return ErrTestException
		})
}
