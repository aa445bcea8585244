package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"cronlite/internal/config"
	"cronlite/pkg/cronlite"
	logx "cronlite/pkg/logx"
)

// maxOutputLog bounds the combined output kept in a failure log line.
const maxOutputLog = 2048

// registerJobs registers every configured job on ctl. Config is validated
// before it reaches here, so any error is unexpected.
func registerJobs(ctl *cronlite.Controller, jobs []config.JobConfig, log logx.Logger) ([]*cronlite.Task, error) {
	tasks := make([]*cronlite.Task, 0, len(jobs))
	for _, j := range jobs {
		body, err := commandBody(j, log.With(logx.String("job", j.Name)))
		if err != nil {
			return nil, err
		}
		opts := []cronlite.TaskOption{cronlite.WithName(j.Name)}
		until, err := j.UntilTime()
		if err != nil {
			return nil, err
		}
		if !until.IsZero() {
			opts = append(opts, cronlite.Until(until))
		}
		t, err := ctl.Register(j.Cron, body, opts...)
		if err != nil {
			return nil, fmt.Errorf("jobs[%s]: %w", j.Name, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// commandBody builds the task body for a job: run the command once, bounded
// by the job timeout, and fail on a non-zero exit.
func commandBody(j config.JobConfig, log logx.Logger) (func() error, error) {
	timeout, err := j.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	env := jobEnv(j.Env)

	return func() error {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(ctx, j.Command, j.Args...)
		cmd.Dir = j.Dir
		if len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		start := time.Now()
		err := cmd.Run()
		took := time.Since(start)

		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("command %s timed out after %s", j.Command, timeout)
		}
		if err != nil {
			return fmt.Errorf("command %s: %w: %s", j.Command, err, clip(out.String(), maxOutputLog))
		}
		log.Debug("command finished",
			logx.Duration("took", took),
			logx.Int("output_bytes", out.Len()),
		)
		return nil
	}, nil
}

// jobEnv renders env as KEY=VALUE pairs in key order.
func jobEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
