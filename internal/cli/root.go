package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd 根命令；不带子命令时启动 HTTP 服务
func RootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "raingauge",
		Short: "雨量站异常数据服务",
		Long: `rain-gauge-api 提供雨量站异常数据的查询、异常原因填写、统计与 Excel 导出接口。

不带子命令运行时等同于 "raingauge serve"。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认为可执行文件同目录下的 config.toml）")

	root.AddCommand(ServeCmd(&configPath))
	root.AddCommand(StatsCmd(&configPath))
	root.AddCommand(ExportCmd(&configPath))
	root.AddCommand(ResolveCmd(&configPath))
	root.AddCommand(SeedCmd(&configPath))

	return root
}
