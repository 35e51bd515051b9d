package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meoying/schedlock-go/internal/executor"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Task 一个定时任务。多个节点注册同名的任务，同一时刻只有一个节点会执行
type Task struct {
	Name string
	// Interval 每隔多久尝试一次
	Interval       time.Duration
	LockAtMostFor  time.Duration
	LockAtLeastFor time.Duration
	Run            executor.Task
}

func (t Task) lockConfiguration() dlock.LockConfiguration {
	return dlock.LockConfiguration{
		Name:           t.Name,
		LockAtMostFor:  t.LockAtMostFor,
		LockAtLeastFor: t.LockAtLeastFor,
	}
}

// Scheduler 一个任务一个循环，每次到点就尝试执行一次。
// 没拿到锁就等下一次，不会排队，也不会重试
type Scheduler struct {
	executor executor.Executor
	tasks    []Task
	names    map[string]struct{}
	// 启动的时候是不是立刻执行一次
	runOnStart bool
	logger     zerolog.Logger
}

type SchedulerOpt func(s *Scheduler)

func NewScheduler(exec executor.Executor, opts ...SchedulerOpt) *Scheduler {
	s := &Scheduler{
		executor:   exec,
		names:      make(map[string]struct{}, 8),
		runOnStart: true,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func WithLogger(logger zerolog.Logger) SchedulerOpt {
	return func(s *Scheduler) {
		s.logger = logger.With().Str("component", "scheduler").Logger()
	}
}

func WithRunOnStart(runOnStart bool) SchedulerOpt {
	return func(s *Scheduler) {
		s.runOnStart = runOnStart
	}
}

// Register 必须在 Start 之前调用
func (s *Scheduler) Register(task Task) error {
	if task.Interval <= 0 {
		return fmt.Errorf("任务 %s 的调度间隔必须大于 0", task.Name)
	}
	if task.Run == nil {
		return fmt.Errorf("任务 %s 没有指定执行的方法", task.Name)
	}
	if err := task.lockConfiguration().Validate(); err != nil {
		return err
	}
	if _, ok := s.names[task.Name]; ok {
		return fmt.Errorf("任务 %s 重复注册", task.Name)
	}
	s.names[task.Name] = struct{}{}
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *Scheduler) Tasks() []Task {
	return s.tasks
}

// Start 阻塞直到 ctx 被取消
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.tasks) == 0 {
		return errors.New("没有注册任何任务")
	}
	var eg errgroup.Group
	for _, task := range s.tasks {
		eg.Go(func() error {
			s.loop(ctx, task)
			return nil
		})
	}
	return eg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	s.logger.Info().Str("task", task.Name).Dur("interval", task.Interval).Msg("开始调度任务")
	if s.runOnStart {
		s.runTask(ctx, task)
	}
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str("task", task.Name).Msg("停止调度任务")
			return
		case <-ticker.C:
			s.runTask(ctx, task)
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	res, err := s.executor.ExecuteIfLocked(ctx, task.lockConfiguration(), task.Run)
	if err != nil {
		s.logger.Error().Err(err).Str("task", task.Name).Str("result", res.String()).Msg("调度任务失败")
		return
	}
	s.logger.Debug().Str("task", task.Name).Str("result", res.String()).Msg("调度任务")
}

// RunOnce 立刻尝试执行一次，不影响正常的调度
func (s *Scheduler) RunOnce(ctx context.Context, name string) (executor.Result, error) {
	for _, task := range s.tasks {
		if task.Name == name {
			return s.executor.ExecuteIfLocked(ctx, task.lockConfiguration(), task.Run)
		}
	}
	return executor.Skipped, fmt.Errorf("任务 %s 不存在", name)
}
