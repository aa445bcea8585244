package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cronlite/internal/cronexpr"
)

func newNextCmd() *cobra.Command {
	var (
		count int
		tz    string
		from  string
	)
	cmd := &cobra.Command{
		Use:   "next <expression>",
		Short: "Print the next fire times of a cron expression",
		Long: "Print the next fire times of a cron expression.\n\n" +
			"The expression may be quoted or given as separate arguments:\n" +
			"  cronlite next '* * * * * 0/3'\n" +
			"  cronlite next 0 3 '*' '*' 1-5",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := cronexpr.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			loc, err := cronexpr.LoadLocation(tz)
			if err != nil {
				return err
			}
			ref := time.Now().In(loc)
			if from != "" {
				ref, err = time.Parse(time.RFC3339, from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				ref = ref.In(loc)
			}

			out := cmd.OutOrStdout()
			times := cronexpr.Preview(expr, ref, count)
			if len(times) == 0 {
				fmt.Fprintln(out, "no upcoming fire times")
				return nil
			}
			for _, t := range times {
				fmt.Fprintln(out, t.Format("2006-01-02 15:04:05 MST"))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of fire times to print")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "IANA timezone (or 'local')")
	cmd.Flags().StringVar(&from, "from", "", "Reference time (RFC3339); defaults to now")
	return cmd
}
