package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// seedFile 种子数据文件
//
//	[[records]]
//	stcd = "A001"
//	stnm = "一团雨量站"
//	aid  = "661101"
//	tm   = "2025-10-10 12:00:00"
//	val  = 12.5
type seedFile struct {
	Records []seedRecord `toml:"records"`
}

type seedRecord struct {
	StationCode  string  `toml:"stcd"`
	StationName  string  `toml:"stnm"`
	RegionID     *string `toml:"aid"`
	Time         string  `toml:"tm"`
	Value        float64 `toml:"val"`
	Remark       *string `toml:"rem"`
	ResolverName *string `toml:"re_name"`
	Status       *int    `toml:"status"`
}

// loadSeedFile 读取并校验种子数据
func loadSeedFile(path string) ([]model.ExceptionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf seedFile
	if err := toml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", path, err)
	}

	records := make([]model.ExceptionRecord, 0, len(sf.Records))
	for i, r := range sf.Records {
		if r.StationCode == "" {
			return nil, fmt.Errorf("第 %d 条记录缺少 stcd", i+1)
		}
		tm, err := model.ParseTime(r.Time)
		if err != nil {
			return nil, fmt.Errorf("第 %d 条记录: %w", i+1, err)
		}
		records = append(records, model.ExceptionRecord{
			StationCode:   r.StationCode,
			StationName:   r.StationName,
			RegionID:      r.RegionID,
			ExceptionTime: tm,
			Value:         r.Value,
			Remark:        r.Remark,
			ResolverName:  r.ResolverName,
			Status:        r.Status,
		})
	}
	return records, nil
}

// SeedCmd 导入种子数据（演示 / 联调用）
func SeedCmd(configPath *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "从 TOML 文件写入异常记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadSeedFile(file)
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context(), *configPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			now := a.svc.Now()
			for _, rec := range records {
				rec.InsertedAt = &now
				if err := a.store.InsertException(cmd.Context(), rec); err != nil {
					return fmt.Errorf("写入 %s@%s 失败: %w", rec.StationCode, model.FormatTime(rec.ExceptionTime), err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "已写入 %s 条异常记录\n", humanize.Comma(int64(len(records))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "records.toml", "种子数据文件")
	return cmd
}
