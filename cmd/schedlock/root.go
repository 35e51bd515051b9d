package main

import (
	"github.com/meoying/schedlock-go/internal/config"
	"github.com/spf13/cobra"
)

// loader 子命令真正执行的时候才读取配置，这样 --help 不需要配置文件
type loader func() (config.Config, error)

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var configFile string
	cmd := &cobra.Command{
		Use:   "schedlock",
		Short: "集群里面的定时任务，同一时刻只在一个节点上执行",
		Long: `schedlock 借助 Redis 或者数据库里面的一个 key 来协调多个节点上的同名任务。
拿到锁的节点执行任务，其余节点直接跳过这一次调度。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "配置文件路径，支持 yaml、json、toml")
	flags.String("namespace", "", "命名空间，一般是应用的名字")
	flags.String("store", "", "存储：redis、gorm 或者 memory")
	flags.String("redis-addr", "", "Redis 地址")
	flags.String("log-level", "", "日志级别")
	for key, name := range map[string]string{
		"namespace":  "namespace",
		"store":      "store",
		"redis.addr": "redis-addr",
		"log.level":  "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	load := func() (config.Config, error) {
		config.LoadDotEnv()
		return config.Load(v, configFile)
	}
	cmd.AddCommand(newServeCmd(load), newExecCmd(load), newKeysCmd(load))
	return cmd
}
