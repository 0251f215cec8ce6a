package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// ResolveCmd 命令行填写异常原因
func ResolveCmd(configPath *string) *cobra.Command {
	var (
		stcd   string
		tm     string
		rem    string
		name   string
		status int
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "填写异常原因（待反馈 -> 已处理）",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseTime(tm)
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context(), *configPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			detail, err := a.svc.ResolveException(cmd.Context(), model.ResolveRequest{
				StationCode:   stcd,
				ExceptionTime: t,
				Remark:        rem,
				ResolverName:  name,
				Status:        status,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s @ %s 已处理（%s，%s）\n",
				color.New(color.FgGreen).Sprint("✓"),
				detail.StationCode, detail.StationName,
				model.FormatTime(detail.ExceptionTime),
				detail.ResolverName,
				model.FormatTime(detail.ResolvedAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&stcd, "stcd", "", "测站编码")
	cmd.Flags().StringVar(&tm, "tm", "", "异常时间 YYYY-MM-DD HH:MM:SS")
	cmd.Flags().StringVar(&rem, "rem", "", "异常原因")
	cmd.Flags().StringVar(&name, "name", "", "反馈人员")
	cmd.Flags().IntVar(&status, "status", 1, "处理状态")
	_ = cmd.MarkFlagRequired("stcd")
	_ = cmd.MarkFlagRequired("tm")
	_ = cmd.MarkFlagRequired("rem")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
