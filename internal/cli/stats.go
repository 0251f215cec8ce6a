package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// StatsCmd 打印待反馈异常统计
func StatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "打印待反馈异常统计",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *configPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			printStatistics(cmd.OutOrStdout(), a.svc.GetStatistics(cmd.Context()))
			return nil
		},
	}
}

func printStatistics(w io.Writer, s model.Statistics) {
	bold := color.New(color.Bold)
	count := func(n int64) string {
		if n == 0 {
			return color.New(color.FgGreen).Sprint("0")
		}
		return color.New(color.FgYellow).Sprint(humanize.Comma(n))
	}

	bold.Fprintln(w, "待反馈异常统计")
	fmt.Fprintf(w, "  待反馈记录: %s\n", count(s.PendingTotal))
	fmt.Fprintf(w, "  涉及测站:   %s\n", count(s.DistinctPendingStations))
	fmt.Fprintf(w, "  涉及团场:   %s\n", count(s.DistinctPendingRegions))
	if s.LatestExceptionTime != nil {
		fmt.Fprintf(w, "  最新异常:   %s\n", model.FormatTime(*s.LatestExceptionTime))
	} else {
		fmt.Fprintf(w, "  最新异常:   %s\n", color.New(color.Faint).Sprint("无"))
	}
}
