package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/meoying/schedlock-go/internal/executor"
)

// ExitError 命令执行失败，带上退出码
type ExitError struct {
	Command string
	Code    int
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("命令 %s 执行失败，退出码 %d: %v", e.Command, e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// CommandTask 把一个外部命令包装成任务，命令的输出直接写到当前进程的标准输出
func CommandTask(name string, args ...string) executor.Task {
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		err := cmd.Run()
		if err == nil {
			return nil
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExitError{Command: name, Code: code, Err: err}
	}
}
