package executor

import (
	"time"

	"github.com/ecodeclub/ekit/bean/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

func WithLogger(logger zerolog.Logger) option.Option[LockingTaskExecutor] {
	return func(e *LockingTaskExecutor) {
		e.logger = logger.With().Str("component", "executor").Logger()
	}
}

func WithTracerProvider(tp trace.TracerProvider) option.Option[LockingTaskExecutor] {
	return func(e *LockingTaskExecutor) {
		e.tracer = tp.Tracer(instrumentationName)
	}
}

// WithKeepAlive 任务执行期间在后台续约，适合执行时间不确定的任务。
// interval 为 0 就是 LockAtMostFor / 2
func WithKeepAlive(interval time.Duration) option.Option[LockingTaskExecutor] {
	return func(e *LockingTaskExecutor) {
		e.keepAlive = true
		e.keepAliveInterval = interval
	}
}
