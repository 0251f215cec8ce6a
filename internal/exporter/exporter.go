package exporter

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

const (
	// DataSheet 异常数据工作表
	DataSheet = "异常数据"
	// InfoSheet 导出信息工作表
	InfoSheet = "导出信息"

	// ContentType xlsx 响应类型
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxColumnWidth = 20
	// 每写入多少行上报一次进度
	progressStep = 500
)

// Headers 异常数据表列标题
var Headers = []string{
	"测站编码", "测站名称", "行政区代码", "异常值", "异常时间",
	"插入时间", "异常原因", "反馈人员", "处理状态", "反馈时间",
	"经度", "纬度", "县", "市",
}

// ExportOptions 导出选项
type ExportOptions struct {
	Items []model.ExceptionItem
	// Total 符合条件的总记录数（列表导出时为分页前总数）
	Total      int
	Filter     model.Filter
	ExportedAt time.Time
	Progress   func(ProgressEvent)
}

// Exporter 异常数据 Excel 导出器
type Exporter struct{}

// NewExporter 创建导出器
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export 生成工作簿；调用方负责 Close
func (e *Exporter) Export(opts ExportOptions) (*excelize.File, error) {
	reportProgress(opts.Progress, 5, "准备工作簿")

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), DataSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("重命名工作表失败: %w", err)
	}

	if err := writeDataSheet(f, opts.Items, opts.Progress); err != nil {
		_ = f.Close()
		return nil, err
	}

	reportProgress(opts.Progress, 95, "写入导出信息")
	if err := writeInfoSheet(f, opts); err != nil {
		_ = f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	reportProgress(opts.Progress, 100, "导出完成")
	return f, nil
}

func writeDataSheet(f *excelize.File, items []model.ExceptionItem, progress func(ProgressEvent)) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Border:    thinBorders(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("创建表头样式失败: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Border:    thinBorders(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("创建单元格样式失败: %w", err)
	}

	widths := make([]int, len(Headers))
	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}
	if err := f.SetSheetRow(DataSheet, "A1", &header); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Headers))
	if err := f.SetCellStyle(DataSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("设置表头样式失败: %w", err)
	}

	total := len(items)
	for i, it := range items {
		row := dataRow(it)
		for col, v := range row {
			if n := utf8.RuneCountInString(cellText(v)); n > widths[col] {
				widths[col] = n
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(DataSheet, cell, &row); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", i+2, err)
		}
		if (i+1)%progressStep == 0 {
			reportProgress(progress, 10+80*(i+1)/total, fmt.Sprintf("已写入 %d/%d 行", i+1, total))
		}
	}
	if total > 0 {
		if err := f.SetCellStyle(DataSheet, "A2", lastCol+strconv.Itoa(total+1), cellStyle); err != nil {
			return fmt.Errorf("设置单元格样式失败: %w", err)
		}
	}
	reportProgress(progress, 90, "数据写入完成")

	for i, w := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(DataSheet, name, name, float64(min(w+2, maxColumnWidth))); err != nil {
			return fmt.Errorf("设置列宽失败: %w", err)
		}
	}
	return nil
}

func writeInfoSheet(f *excelize.File, opts ExportOptions) error {
	if _, err := f.NewSheet(InfoSheet); err != nil {
		return fmt.Errorf("创建导出信息表失败: %w", err)
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("创建标签样式失败: %w", err)
	}

	flt := opts.Filter
	rows := [][2]interface{}{
		{"导出时间", model.FormatTime(opts.ExportedAt)},
		{"总记录数", opts.Total},
		{"当前页记录数", len(opts.Items)},
		{"政区代码", orAll(flt.RegionPrefix)},
		{"测站编码", orAll(flt.StationCode)},
		{"测站名称", orAll(flt.NameSubstring)},
		{"起始时间", timeOrAll(flt.StartTime)},
		{"终止时间", timeOrAll(flt.EndTime)},
		{"状态", flt.Status.Label()},
	}
	for i, r := range rows {
		label := fmt.Sprintf("A%d", i+1)
		if err := f.SetCellValue(InfoSheet, label, r[0]); err != nil {
			return err
		}
		if err := f.SetCellStyle(InfoSheet, label, label, labelStyle); err != nil {
			return err
		}
		if err := f.SetCellValue(InfoSheet, fmt.Sprintf("B%d", i+1), r[1]); err != nil {
			return err
		}
	}
	return nil
}

func dataRow(it model.ExceptionItem) []interface{} {
	return []interface{}{
		it.StationCode,
		it.StationName,
		strOrEmpty(it.RegionID),
		it.Value,
		it.ExceptionTime,
		strOrEmpty(it.InsertedAt),
		strOrEmpty(it.Remark),
		strOrEmpty(it.ResolverName),
		it.StatusText(),
		strOrEmpty(it.ResolvedAt),
		floatOrEmpty(it.Longitude),
		floatOrEmpty(it.Latitude),
		it.County,
		it.Prefecture,
	}
}

func cellText(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func thinBorders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func orAll(s string) string {
	if s == "" {
		return "全部"
	}
	return s
}

func timeOrAll(t *time.Time) string {
	if t == nil {
		return "全部"
	}
	return model.FormatTime(*t)
}

// FileName 导出文件名：异常数据导出_YYYYMMDD_HHMMSS.xlsx
func FileName(at time.Time) string {
	return "异常数据导出_" + at.Format("20060102_150405") + ".xlsx"
}

// ContentDisposition 附件响应头；filename 为 ASCII 兜底名，filename* 按 RFC 5987 编码中文名
func ContentDisposition(at time.Time) string {
	fallback := "exceptions_" + at.Format("20060102_150405") + ".xlsx"
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", fallback, url.PathEscape(FileName(at)))
}
