package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cronlite/pkg/cronlite"
)

func newDemoCmd() *cobra.Command {
	var (
		runFor time.Duration
		tz     string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run two sample tasks (every 3s and every 4s) for a while",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &syncWriter{w: cmd.OutOrStdout()}
			log := cmdLogger(cmd)

			ctl := cronlite.New(cronlite.WithLogger(log))
			if err := ctl.SetTimeZone(tz); err != nil {
				return err
			}
			printer := cronlite.TimestampHandler(cronlite.PrintHandler(out))

			if _, err := ctl.Register("* * * * * 0/3", func() error {
				return printer("every 3s")
			}, cronlite.WithName("every3s")); err != nil {
				return err
			}
			if _, err := ctl.Register("* * * * * 0/4", func() error {
				return printer("every 4s")
			}, cronlite.WithName("every4s")); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if runFor > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, runFor)
				defer cancel()
			}

			run, err := ctl.Start(ctx, true,
				cronlite.WithInfoHandler(printer),
				cronlite.WithErrorHandler(cronlite.PrintHandler(cmd.ErrOrStderr())),
			)
			if err != nil {
				return err
			}
			<-ctx.Done()
			ctl.Stop(run)
			fmt.Fprintln(out, "demo finished")
			return nil
		},
	}
	cmd.Flags().DurationVar(&runFor, "for", 9*time.Second, "How long to run (0 runs until interrupted)")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "IANA timezone (or 'local')")
	return cmd
}
