package executor

import (
	"context"
	"errors"
	"time"

	"github.com/ecodeclub/ekit/bean/option"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	"github.com/meoying/schedlock-go/internal/lock/errs"
	"github.com/meoying/schedlock-go/internal/logging"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/meoying/schedlock-go/internal/executor"

// Result 一次调度尝试的结果
type Result uint8

const (
	// Skipped 没有拿到锁，任务没有执行
	Skipped Result = iota
	// Executed 拿到了锁，任务执行了，不管任务本身成功还是失败
	Executed
)

func (r Result) String() string {
	switch r {
	case Executed:
		return "executed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Task 被锁保护的任务，在调用者的 goroutine 里面同步执行
type Task func(ctx context.Context) error

// Executor 只有拿到锁才执行任务
type Executor interface {
	ExecuteIfLocked(ctx context.Context, cfg dlock.LockConfiguration, task Task) (Result, error)
}

// LockingTaskExecutor 保证拿到的锁一定会被释放，不管任务是正常返回、返回 error 还是 panic
type LockingTaskExecutor struct {
	provider dlock.LockProvider
	logger   zerolog.Logger
	tracer   trace.Tracer

	keepAlive         bool
	keepAliveInterval time.Duration
}

func NewLockingTaskExecutor(provider dlock.LockProvider,
	opts ...option.Option[LockingTaskExecutor]) *LockingTaskExecutor {
	e := &LockingTaskExecutor{
		provider: provider,
		logger:   zerolog.Nop(),
		tracer:   otel.GetTracerProvider().Tracer(instrumentationName),
	}
	option.Apply(e, opts...)
	return e
}

// Execute 和 ExecuteIfLocked 一样，只是把配置拆开了
func (e *LockingTaskExecutor) Execute(ctx context.Context, name string,
	lockAtMostFor, lockAtLeastFor time.Duration, task Task) (Result, error) {
	return e.ExecuteIfLocked(ctx, dlock.LockConfiguration{
		Name:           name,
		LockAtMostFor:  lockAtMostFor,
		LockAtLeastFor: lockAtLeastFor,
	}, task)
}

// ExecuteIfLocked 没有拿到锁就返回 Skipped，这不是错误。
// 存储不可用的时候也是返回 Skipped，宁可少执行一次，也不能多个节点同时执行。
// 任务返回的 error 原封不动返回给调用者
func (e *LockingTaskExecutor) ExecuteIfLocked(ctx context.Context,
	cfg dlock.LockConfiguration, task Task) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "schedlock.execute",
		trace.WithAttributes(attribute.String("schedlock.name", cfg.Name)))
	defer span.End()

	lock, err := e.provider.TryLock(ctx, cfg)
	switch {
	case errors.Is(err, errs.ErrInvalidConfiguration):
		span.RecordError(err)
		span.SetStatus(codes.Error, "非法的锁配置")
		return Skipped, err
	case err != nil:
		e.logger.Warn().Err(err).Str("task", cfg.Name).Msg("加锁失败，跳过本次执行")
		span.RecordError(err)
		span.SetAttributes(attribute.String("schedlock.result", Skipped.String()))
		return Skipped, nil
	case lock == nil:
		e.logger.Debug().Str("task", cfg.Name).Msg("锁被别的节点持有，跳过本次执行")
		span.SetAttributes(attribute.String("schedlock.result", Skipped.String()))
		return Skipped, nil
	}

	span.SetAttributes(
		attribute.String("schedlock.result", Executed.String()),
		attribute.String("schedlock.key", lock.Key()),
	)
	err = e.run(ctx, lock, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "任务执行失败")
	}
	return Executed, err
}

func (e *LockingTaskExecutor) run(ctx context.Context, lock dlock.SimpleLock, task Task) error {
	logger := logging.TaskLogger(e.logger, lock.Configuration().Name, lock.Key())
	var keepAlive *dlock.KeepAlive
	if e.keepAlive {
		opts := []option.Option[dlock.KeepAlive]{
			dlock.WithOnLost(func(err error) {
				logger.Error().Err(err).Msg("续约失败，锁已经被别的节点拿走了")
			}),
			dlock.WithOnExtendError(func(err error) {
				logger.Warn().Err(err).Msg("续约失败")
			}),
		}
		if e.keepAliveInterval > 0 {
			opts = append(opts, dlock.WithKeepAliveInterval(e.keepAliveInterval))
		}
		keepAlive = dlock.StartKeepAlive(lock, opts...)
	}
	// panic 的时候也会执行，panic 会在释放锁之后继续往上传
	defer func() {
		if keepAlive != nil {
			keepAlive.Stop()
		}
		if err := lock.Unlock(ctx); err != nil {
			// 释放失败最多就是锁在 LockAtMostFor 之后才过期，所以只记录日志
			logger.Error().Err(err).Msg("释放锁失败")
		}
	}()
	logger.Debug().Msg("拿到锁，开始执行任务")
	err := task(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("任务执行失败")
	}
	return err
}
