package test

import "sync/atomic"

// Counter 记录任务真正执行的次数，每个场景开始之前要 Reset
type Counter struct {
	cnt atomic.Int64
}

func (c *Counter) Inc() {
	c.cnt.Add(1)
}

func (c *Counter) Count() int64 {
	return c.cnt.Load()
}

func (c *Counter) Reset() {
	c.cnt.Store(0)
}
