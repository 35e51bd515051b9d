// Package config 读取配置。优先级从高到低是环境变量、配置文件、默认值，
// 环境变量的前缀是 SCHEDLOCK，比如 redis.addr 对应 SCHEDLOCK_REDIS_ADDR
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	glock "github.com/meoying/schedlock-go/internal/lock/gorm"
	"github.com/meoying/schedlock-go/internal/lock/token"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	StoreRedis  = "redis"
	StoreGorm   = "gorm"
	StoreMemory = "memory"
)

type Config struct {
	// Namespace 一般就是应用的名字
	Namespace string        `mapstructure:"namespace"`
	Store     string        `mapstructure:"store"`
	Redis     RedisConfig   `mapstructure:"redis"`
	MySQL     MySQLConfig   `mapstructure:"mysql"`
	Lock      LockConfig    `mapstructure:"lock"`
	Admin     AdminConfig   `mapstructure:"admin"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
	Log       LogConfig     `mapstructure:"log"`
	Kafka     KafkaConfig   `mapstructure:"kafka"`
	Tracing   TracingConfig `mapstructure:"tracing"`
	Tasks     []TaskConfig  `mapstructure:"tasks"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN   string `mapstructure:"dsn"`
	Mode  string `mapstructure:"mode"`
	Table string `mapstructure:"table"`
}

type LockConfig struct {
	// ReleaseMode wait 或者 defer
	ReleaseMode string `mapstructure:"releaseMode"`
	// Token uuid, shortuuid 或者 snowflake
	Token string `mapstructure:"token"`
	// Node snowflake 的节点 ID，集群内唯一
	Node int64 `mapstructure:"node"`
}

func (c LockConfig) Mode() dlock.ReleaseMode {
	if c.ReleaseMode == dlock.ReleaseModeDefer.String() {
		return dlock.ReleaseModeDefer
	}
	return dlock.ReleaseModeWait
}

type AdminConfig struct {
	// Addr 为空就不启动管理后台
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	// Addr 为空就不暴露 /metrics
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type KafkaConfig struct {
	// Brokers 为空就不发送事件
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TracingConfig struct {
	ZipkinURL string `mapstructure:"zipkinURL"`
}

type TaskConfig struct {
	Name           string        `mapstructure:"name"`
	Interval       time.Duration `mapstructure:"interval"`
	LockAtMostFor  time.Duration `mapstructure:"lockAtMostFor"`
	LockAtLeastFor time.Duration `mapstructure:"lockAtLeastFor"`
	// Command 第一个是命令，后面的是参数
	Command []string `mapstructure:"command"`
}

// LoadDotEnv 把 .env 和 .env.local 加载到环境变量里面，文件不存在就忽略
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("schedlock")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// 只有设置过默认值的 key 才能被环境变量覆盖
	v.SetDefault("namespace", "")
	v.SetDefault("store", StoreRedis)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("mysql.mode", glock.ModeCASFirst)
	v.SetDefault("mysql.table", "distributed_locks")
	v.SetDefault("lock.releaseMode", dlock.ReleaseModeWait.String())
	v.SetDefault("lock.token", token.KindUUID)
	v.SetDefault("lock.node", 0)
	v.SetDefault("admin.addr", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "schedlock_events")
	v.SetDefault("tracing.zipkinURL", "")
	return v
}

// Load file 为空就只用环境变量和默认值
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "读取配置文件")
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "解析配置")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace 不能为空")
	}
	switch c.Store {
	case StoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr 不能为空")
		}
	case StoreGorm:
		if c.MySQL.DSN == "" {
			return errors.New("mysql.dsn 不能为空")
		}
		if c.MySQL.Mode != glock.ModeCASFirst && c.MySQL.Mode != glock.ModeInsertFirst {
			return fmt.Errorf("非法的 mysql.mode %s", c.MySQL.Mode)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("非法的 store %s", c.Store)
	}
	if c.Lock.ReleaseMode != dlock.ReleaseModeWait.String() &&
		c.Lock.ReleaseMode != dlock.ReleaseModeDefer.String() {
		return fmt.Errorf("非法的 lock.releaseMode %s", c.Lock.ReleaseMode)
	}
	if _, err := token.New(c.Lock.Token, c.Lock.Node); err != nil {
		return err
	}
	names := make(map[string]struct{}, len(c.Tasks))
	for _, task := range c.Tasks {
		if _, ok := names[task.Name]; ok {
			return fmt.Errorf("任务 %s 重复了", task.Name)
		}
		names[task.Name] = struct{}{}
		if err := task.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t TaskConfig) LockConfiguration() dlock.LockConfiguration {
	return dlock.LockConfiguration{
		Name:           t.Name,
		LockAtMostFor:  t.LockAtMostFor,
		LockAtLeastFor: t.LockAtLeastFor,
	}
}

func (t TaskConfig) Validate() error {
	if err := t.LockConfiguration().Validate(); err != nil {
		return err
	}
	if t.Interval <= 0 {
		return fmt.Errorf("任务 %s 的 interval 必须大于 0", t.Name)
	}
	if len(t.Command) == 0 {
		return fmt.Errorf("任务 %s 没有指定 command", t.Name)
	}
	return nil
}
