// Package cli implements the cronlite command line.
package cli

import (
	"io"
	"sync"

	"github.com/spf13/cobra"

	logx "cronlite/pkg/logx"
)

var (
	flagDebug    bool
	flagLogLevel string
)

// NewRootCmd creates the root cobra command for the cronlite CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cronlite",
		Short: "cronlite runs functions and commands on cron schedules",
		Long: "cronlite evaluates 5-field (minute-level) and 6-field (trailing seconds)\n" +
			"cron expressions and runs jobs on them until stopped or past their cutoff.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(),
		newNextCmd(),
		newDemoCmd(),
	)
	return root
}

// cmdLogger logs to the command's stderr at the requested level.
func cmdLogger(cmd *cobra.Command) logx.Logger {
	return logx.NewWriter(cmd.ErrOrStderr(), flagLogLevel)
}

// syncWriter serializes writes from concurrently firing tasks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
