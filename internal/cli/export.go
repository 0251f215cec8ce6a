package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aidingjing/rain-gauge-api/internal/exporter"
	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// filterFlags 与 HTTP 查询参数同名的筛选条件
type filterFlags struct {
	adcd   string
	stcd   string
	name   string
	bt     string
	et     string
	status string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.adcd, "adcd", "", "政区代码前缀")
	cmd.Flags().StringVar(&f.stcd, "stcd", "", "测站编码")
	cmd.Flags().StringVar(&f.name, "name", "", "测站名称（模糊匹配）")
	cmd.Flags().StringVar(&f.bt, "bt", "", "起始时间 YYYY-MM-DD HH:MM:SS")
	cmd.Flags().StringVar(&f.et, "et", "", "终止时间 YYYY-MM-DD HH:MM:SS")
	cmd.Flags().StringVar(&f.status, "status", "pending", "状态: pending|resolved|all 或 0|1|2")
}

func (f *filterFlags) filter() (model.Filter, error) {
	status, err := model.ParseStatusFilter(f.status)
	if err != nil {
		return model.Filter{}, err
	}
	out := model.Filter{
		RegionPrefix:  f.adcd,
		StationCode:   f.stcd,
		NameSubstring: f.name,
		Status:        status,
	}
	if f.bt != "" {
		t, err := model.ParseTime(f.bt)
		if err != nil {
			return model.Filter{}, err
		}
		out.StartTime = &t
	}
	if f.et != "" {
		t, err := model.ParseTime(f.et)
		if err != nil {
			return model.Filter{}, err
		}
		out.EndTime = &t
	}
	return out, nil
}

// ExportCmd 导出 Excel 到本地文件
func ExportCmd(configPath *string) *cobra.Command {
	var (
		out   string
		flags filterFlags
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "按筛选条件导出异常数据 Excel",
		Example: `  raingauge export --adcd 6611 --status all
  raingauge export --out ./异常数据.xlsx --bt "2025-10-01" --et "2025-10-31 23:59:59"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flags.filter()
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context(), *configPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.svc.ExportExceptions(cmd.Context(), f)
			if err != nil {
				return err
			}

			now := a.svc.Now()
			file, err := exporter.NewExporter().Export(exporter.ExportOptions{
				Items:      items,
				Total:      len(items),
				Filter:     f,
				ExportedAt: now,
			})
			if err != nil {
				return err
			}
			defer file.Close()

			if out == "" {
				out = exporter.FileName(now)
			}
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return err
				}
			}
			if err := file.SaveAs(out); err != nil {
				return fmt.Errorf("写入 %s 失败: %w", out, err)
			}

			size := "?"
			if st, err := os.Stat(out); err == nil {
				size = humanize.Bytes(uint64(st.Size()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s 导出 %s 条记录到 %s (%s)\n",
				color.New(color.FgGreen).Sprint("✓"), humanize.Comma(int64(len(items))), out, size)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件（默认 异常数据导出_YYYYMMDD_HHMMSS.xlsx）")
	flags.register(cmd)
	return cmd
}
