// Package event 锁的执行事件，用于审计和外部观察
package event

import (
	"context"
	"time"
)

const (
	ResultExecuted = "executed"
	ResultSkipped  = "skipped"
)

// LockEvent 一次调度尝试的结果
type LockEvent struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	// ResultExecuted 或者 ResultSkipped
	Result string `json:"result"`
	// 任务失败的原因，没有失败就是空的
	Error string `json:"error,omitempty"`
	Host  string `json:"host"`
	// 开始时间，毫秒数
	StartAt int64 `json:"startAt"`
	// 执行时长，毫秒数
	Duration int64 `json:"duration"`
}

func (e LockEvent) Success() bool {
	return e.Error == ""
}

func (e LockEvent) StartTime() time.Time {
	return time.UnixMilli(e.StartAt)
}

type Publisher interface {
	Publish(ctx context.Context, evt LockEvent) error
}

// NopPublisher 没有配置 Kafka 的时候使用
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, evt LockEvent) error {
	return nil
}
