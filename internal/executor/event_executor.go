package executor

import (
	"context"
	"os"
	"time"

	"github.com/meoying/schedlock-go/internal/event"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	"github.com/rs/zerolog"
)

// EventExecutor 每次调度尝试之后发送一个事件。
// 事件发送失败只记录日志，不影响任务的结果
type EventExecutor struct {
	executor  Executor
	publisher event.Publisher
	keys      dlock.KeyBuilder
	host      string
	logger    zerolog.Logger
}

func NewEventExecutor(executor Executor, publisher event.Publisher,
	keys dlock.KeyBuilder, logger zerolog.Logger) *EventExecutor {
	host, _ := os.Hostname()
	return &EventExecutor{
		executor:  executor,
		publisher: publisher,
		keys:      keys,
		host:      host,
		logger:    logger.With().Str("component", "event_executor").Logger(),
	}
}

func (e *EventExecutor) ExecuteIfLocked(ctx context.Context,
	cfg dlock.LockConfiguration, task Task) (Result, error) {
	start := time.Now()
	res, err := e.executor.ExecuteIfLocked(ctx, cfg, task)
	evt := event.LockEvent{
		Name:     cfg.Name,
		Key:      e.keys.Key(cfg.Name),
		Result:   event.ResultSkipped,
		Host:     e.host,
		StartAt:  start.UnixMilli(),
		Duration: time.Since(start).Milliseconds(),
	}
	if res == Executed {
		evt.Result = event.ResultExecuted
	}
	if err != nil {
		evt.Error = err.Error()
	}
	// 任务的 ctx 可能已经被取消了，事件还是要发出去
	if perr := e.publisher.Publish(context.WithoutCancel(ctx), evt); perr != nil {
		e.logger.Warn().Err(perr).Str("task", cfg.Name).Msg("发送锁事件失败")
	}
	return res, err
}
