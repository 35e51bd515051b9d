package main

import (
	"fmt"
	"time"

	dlock "github.com/meoying/schedlock-go/internal/lock"
	"github.com/meoying/schedlock-go/internal/service"
	"github.com/spf13/cobra"
)

func newExecCmd(load loader) *cobra.Command {
	var (
		name      string
		atMost    time.Duration
		atLeast   time.Duration
		keepAlive bool
	)
	cmd := &cobra.Command{
		Use:   "exec --name NAME [flags] -- COMMAND [ARGS...]",
		Short: "拿到锁就执行命令，拿不到就跳过",
		Example: `  # 放在每台机器的 crontab 里面，同一分钟只有一台机器会真的执行
  schedlock exec --namespace billing --name report --at-most 10m --at-least 30s -- ./report.sh`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lockCfg, err := dlock.NewLockConfiguration(name, atMost, atLeast)
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			exec, err := a.newExecutor(keepAlive)
			if err != nil {
				return err
			}
			res, err := exec.ExecuteIfLocked(cmd.Context(), lockCfg, service.CommandTask(args[0], args[1:]...))
			// 标准输出留给命令本身
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", name, res)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "锁的名字，同名的任务互斥")
	flags.DurationVar(&atMost, "at-most", 10*time.Minute, "持有锁的最长时间，节点崩溃之后锁最多保留这么久")
	flags.DurationVar(&atLeast, "at-least", 0, "持有锁的最短时间，用来避免时钟偏差导致重复执行")
	flags.BoolVar(&keepAlive, "keep-alive", false, "执行期间在后台续约")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
