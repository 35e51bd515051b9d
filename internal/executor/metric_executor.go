package executor

import (
	"context"
	"strconv"
	"time"

	dlock "github.com/meoying/schedlock-go/internal/lock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricExecutor struct {
	executor     Executor
	ExecDuration *prometheus.HistogramVec
	Attempts     *prometheus.CounterVec
}

// NewMetricExecutor reg 为 nil 的时候不会注册
func NewMetricExecutor(executor Executor, reg prometheus.Registerer) *MetricExecutor {
	factory := promauto.With(reg)
	return &MetricExecutor{
		executor: executor,
		ExecDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schedlock_task_exec_duration_seconds",
				Help:    "拿到锁之后任务的执行时间，包含等待 lockAtLeastFor 的时间",
				Buckets: prometheus.DefBuckets,
			},
			// 标签: 任务名字, 任务是否成功
			[]string{"name", "success"},
		),
		Attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedlock_task_attempts_total",
				Help: "调度尝试的次数",
			},
			[]string{"name", "result"},
		),
	}
}

func (m *MetricExecutor) ExecuteIfLocked(ctx context.Context,
	cfg dlock.LockConfiguration, task Task) (Result, error) {
	start := time.Now()
	res, err := m.executor.ExecuteIfLocked(ctx, cfg, task)
	m.Attempts.WithLabelValues(cfg.Name, res.String()).Inc()
	if res == Executed {
		m.ExecDuration.WithLabelValues(cfg.Name, strconv.FormatBool(err == nil)).
			Observe(time.Since(start).Seconds())
	}
	return res, err
}
