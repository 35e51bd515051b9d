// Package logging 日志相关的工具，统一使用 zerolog
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewLogger 输出 JSON 格式的日志到标准错误，标准输出留给任务，level 解析失败就用 info
func NewLogger(serviceName string, level string) zerolog.Logger {
	return newLogger(os.Stderr, serviceName, level)
}

// NewPrettyLogger 本地开发用，输出人能看的格式
func NewPrettyLogger(serviceName string, level string) zerolog.Logger {
	return newLogger(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}, serviceName, level)
}

func newLogger(w io.Writer, serviceName string, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// RequestLogger 管理后台的请求日志
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		statusCode := c.Writer.Status()
		event := logger.Info()
		if statusCode >= 400 && statusCode < 500 {
			event = logger.Warn()
		} else if statusCode >= 500 {
			event = logger.Error()
		}
		event.
			Str("type", "http_request").
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Str("clientIp", c.ClientIP()).
			Dur("latency", time.Since(start))
		if len(c.Errors) > 0 {
			event.Str("error", c.Errors.String())
		}
		event.Msg("HTTP request")
	}
}

func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// LoggerFromContext ctx 里面没有的时候返回的是一个什么都不输出的 logger
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}

// TaskLogger 带上任务名字和锁的 key
func TaskLogger(logger zerolog.Logger, name string, key string) zerolog.Logger {
	return logger.With().
		Str("task", name).
		Str("key", key).
		Logger()
}
