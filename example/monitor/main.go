package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	schedlock "github.com/meoying/schedlock-go"
	"github.com/meoying/schedlock-go/internal/executor"
	rlock "github.com/meoying/schedlock-go/internal/lock/redis"
	"github.com/meoying/schedlock-go/internal/logging"
	"github.com/meoying/schedlock-go/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// 这个是模拟业务直接引入依赖，在自己的进程里面调度定时任务，同时在本地启动管理后台的例子。
// 多启动几个进程，可以看到每一次调度只有一个进程真的执行了
func main() {
	logger := logging.NewPrettyLogger("order", "debug")
	// 初始化prometheus
	initPrometheus()
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	// 1. 初始化 LockProvider，同一个应用的所有实例用同一个 namespace
	provider := schedlock.NewRedisLockProvider(rdb, "order")
	exec := executor.NewMetricExecutor(
		schedlock.NewExecutor(provider, executor.WithLogger(logger)),
		prometheus.DefaultRegisterer)

	// 2. 注册定时任务
	scheduler := schedlock.NewScheduler(exec, service.WithLogger(logger))
	err := scheduler.Register(schedlock.ScheduledTask{
		Name:     "close_timeout_order",
		Interval: time.Second * 10,
		// 进程崩溃之后，锁最多保留一分钟
		LockAtMostFor: time.Minute,
		// 各个进程的时钟不可能完全一致，至少持有 5 秒，避免别的进程在同一轮里面又执行一次
		LockAtLeastFor: time.Second * 5,
		Run: func(ctx context.Context) error {
			fmt.Println("关闭超时订单", time.Now().Format(time.RFC3339))
			return nil
		},
	})
	if err != nil {
		panic(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// 调用 cancel 就会停止调度
		_ = scheduler.Start(ctx)
	}()

	go func() {
		// 这个步骤是可选的，也可以用 schedlock keys 命令来查看锁
		hdl := schedlock.NewAdminHandler(rlock.NewStore(rdb), "order")
		server := gin.Default()
		// 跨域
		server.Use(cors.New(cors.Config{
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			// 你在这里可以控制允许的域名
			AllowOriginFunc: func(origin string) bool {
				return true
			},
		}))
		hdl.RegisterRoutes(server)
		// 启动
		_ = server.Run(":8080")
	}()
	// 监听关闭信号，不同操作系统下可能有差异
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan
	cancel()
}

func initPrometheus() {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(":8081", nil)
	}()
}
