package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/ecodeclub/ekit/bean/option"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	adminsvc "github.com/meoying/schedlock-go/internal/admin/service"
	"github.com/meoying/schedlock-go/internal/admin/web"
	"github.com/meoying/schedlock-go/internal/config"
	"github.com/meoying/schedlock-go/internal/event"
	"github.com/meoying/schedlock-go/internal/executor"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	glock "github.com/meoying/schedlock-go/internal/lock/gorm"
	mlock "github.com/meoying/schedlock-go/internal/lock/memory"
	rlock "github.com/meoying/schedlock-go/internal/lock/redis"
	"github.com/meoying/schedlock-go/internal/lock/token"
	"github.com/meoying/schedlock-go/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// app 根据配置把所有的组件组装起来
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	store    adminsvc.Store
	provider *dlock.StorageLockProvider
	registry *prometheus.Registry
	// 退出的时候按照相反的顺序关闭
	closers []func() error
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   newLogger(cfg.Log),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	store, err := a.newStore()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = store
	valuer, err := token.New(cfg.Lock.Token, cfg.Lock.Node)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.provider = dlock.NewStorageLockProvider(store, cfg.Namespace,
		dlock.WithValuer(valuer),
		dlock.WithReleaseMode(cfg.Lock.Mode()))
	if err = a.initTracing(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	if cfg.Pretty {
		return logging.NewPrettyLogger("schedlock", cfg.Level)
	}
	return logging.NewLogger("schedlock", cfg.Level)
}

func (a *app) newStore() (adminsvc.Store, error) {
	switch a.cfg.Store {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		return rlock.NewStore(rdb), nil
	case config.StoreGorm:
		db, err := gorm.Open(mysql.Open(a.cfg.MySQL.DSN))
		if err != nil {
			return nil, fmt.Errorf("连接数据库失败 %w", err)
		}
		store := glock.NewStore(db,
			glock.WithMode(a.cfg.MySQL.Mode),
			glock.WithTableName(a.cfg.MySQL.Table))
		if err = store.InitTable(); err != nil {
			return nil, fmt.Errorf("初始化锁表失败 %w", err)
		}
		return store, nil
	case config.StoreMemory:
		a.logger.Warn().Msg("使用内存存储，只能协调同一个进程里面的任务")
		return mlock.NewStore(), nil
	default:
		return nil, fmt.Errorf("非法的 store %s", a.cfg.Store)
	}
}

func (a *app) initTracing() error {
	if a.cfg.Tracing.ZipkinURL == "" {
		return nil
	}
	exporter, err := zipkin.New(a.cfg.Tracing.ZipkinURL)
	if err != nil {
		return fmt.Errorf("初始化 zipkin 失败 %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "schedlock"),
			attribute.String("schedlock.namespace", a.cfg.Namespace),
		)),
	)
	otel.SetTracerProvider(tp)
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return tp.Shutdown(ctx)
	})
	return nil
}

// newExecutor 在 LockingTaskExecutor 外面依次套上事件和监控
func (a *app) newExecutor(keepAlive bool) (executor.Executor, error) {
	opts := []option.Option[executor.LockingTaskExecutor]{
		executor.WithLogger(a.logger),
	}
	if keepAlive {
		opts = append(opts, executor.WithKeepAlive(0))
	}
	var exec executor.Executor = executor.NewLockingTaskExecutor(a.provider, opts...)
	publisher, err := a.newPublisher()
	if err != nil {
		return nil, err
	}
	exec = executor.NewEventExecutor(exec, publisher, dlock.NewKeyBuilder(a.cfg.Namespace), a.logger)
	return executor.NewMetricExecutor(exec, a.registry), nil
}

func (a *app) newPublisher() (event.Publisher, error) {
	if len(a.cfg.Kafka.Brokers) == 0 {
		return event.NopPublisher{}, nil
	}
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(a.cfg.Kafka.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("连接 Kafka 失败 %w", err)
	}
	a.closers = append(a.closers, producer.Close)
	return event.NewKafkaPublisher(producer, a.cfg.Kafka.Topic), nil
}

func (a *app) adminServer() *http.Server {
	server := gin.New()
	server.Use(gin.Recovery(), logging.RequestLogger(a.logger))
	// 跨域
	server.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			return true
		},
	}))
	svc := adminsvc.NewLockService(a.store, dlock.NewKeyBuilder(a.cfg.Namespace))
	web.NewHandler(svc).RegisterRoutes(server)
	return &http.Server{Addr: a.cfg.Admin.Addr, Handler: server}
}

func (a *app) metricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
}

func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
