package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/meoying/schedlock-go/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(load loader) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "按照配置文件里面的 tasks 调度任务，同时启动管理后台和监控",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context(), runOnStart)
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", true, "启动的时候立刻尝试执行一次所有的任务")
	return cmd
}

func (a *app) newScheduler(runOnStart bool) (*service.Scheduler, error) {
	exec, err := a.newExecutor(false)
	if err != nil {
		return nil, err
	}
	scheduler := service.NewScheduler(exec,
		service.WithLogger(a.logger),
		service.WithRunOnStart(runOnStart))
	for _, t := range a.cfg.Tasks {
		err = scheduler.Register(service.Task{
			Name:           t.Name,
			Interval:       t.Interval,
			LockAtMostFor:  t.LockAtMostFor,
			LockAtLeastFor: t.LockAtLeastFor,
			Run:            service.CommandTask(t.Command[0], t.Command[1:]...),
		})
		if err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

// serve 阻塞直到 ctx 被取消，或者某个 HTTP 服务启动失败
func (a *app) serve(ctx context.Context, runOnStart bool) error {
	scheduler, err := a.newScheduler(runOnStart)
	if err != nil {
		return err
	}
	var servers []*http.Server
	if a.cfg.Admin.Addr != "" {
		servers = append(servers, a.adminServer())
	}
	if a.cfg.Metrics.Addr != "" {
		servers = append(servers, a.metricsServer())
	}
	if len(servers) == 0 && len(a.cfg.Tasks) == 0 {
		return errors.New("没有配置任务，也没有配置管理后台和监控")
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		eg.Go(func() error {
			a.logger.Info().Str("addr", srv.Addr).Msg("启动 HTTP 服务")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	eg.Go(func() error {
		<-ctx.Done()
		a.logger.Info().Msg("开始退出")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err error
		for _, srv := range servers {
			err = errors.Join(err, srv.Shutdown(shutdownCtx))
		}
		return err
	})
	if len(a.cfg.Tasks) > 0 {
		eg.Go(func() error {
			return scheduler.Start(ctx)
		})
	} else {
		a.logger.Warn().Msg("没有配置任务，只启动 HTTP 服务")
	}
	return eg.Wait()
}
