package main

import (
	"errors"
	"fmt"

	adminsvc "github.com/meoying/schedlock-go/internal/admin/service"
	dlock "github.com/meoying/schedlock-go/internal/lock"
	"github.com/spf13/cobra"
)

func newKeysCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "查看和清理当前 namespace 下面的锁",
	}
	cmd.AddCommand(newKeysListCmd(load), newKeysExistsCmd(load), newKeysPurgeCmd(load))
	return cmd
}

func newKeysListCmd(load loader) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出当前被持有的锁",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLockService(load, func(svc *adminsvc.LockService) error {
				locks, err := svc.List(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				for _, l := range locks {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", l.Name, l.Key)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "只列出名字以它开头的锁")
	return cmd
}

func newKeysExistsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "exists NAME",
		Short: "锁是不是正在被持有",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLockService(load, func(svc *adminsvc.LockService) error {
				ok, err := svc.Exists(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			})
		},
	}
}

func newKeysPurgeCmd(load loader) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "删除当前 namespace 下面所有的锁，正在执行的任务会失去互斥",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("purge 必须加上 --yes 确认")
			}
			return withLockService(load, func(svc *adminsvc.LockService) error {
				n, err := svc.Purge(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "确认删除")
	return cmd
}

func withLockService(load loader, fn func(svc *adminsvc.LockService) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(adminsvc.NewLockService(a.store, dlock.NewKeyBuilder(cfg.Namespace)))
}
