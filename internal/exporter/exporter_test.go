package exporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func sampleItems() []model.ExceptionItem {
	resolved := model.NewExceptionItem(model.ExceptionRecord{
		StationCode:   "A001",
		StationName:   "一团雨量站",
		RegionID:      strPtr("661101"),
		ExceptionTime: time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC),
		Value:         12.5,
		Remark:        strPtr("sensor drift"),
		ResolverName:  strPtr("Li"),
		Status:        intPtr(1),
	})
	pending := model.NewExceptionItem(model.ExceptionRecord{
		StationCode:   "A002",
		StationName:   "无政区测站",
		ExceptionTime: time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC),
		Value:         3,
	})
	return []model.ExceptionItem{resolved, pending}
}

// reopen 写出再读回，验证落盘内容
func reopen(t *testing.T, f *excelize.File) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	out, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = out.Close() })
	return out
}

func TestExport_DataSheet(t *testing.T) {
	f, err := NewExporter().Export(ExportOptions{Items: sampleItems(), Total: 2})
	require.NoError(t, err)
	defer f.Close()
	got := reopen(t, f)

	assert.Equal(t, []string{DataSheet, InfoSheet}, got.GetSheetList())

	rows, err := got.GetRows(DataSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])

	first := rows[1]
	assert.Equal(t, "A001", first[0])
	assert.Equal(t, "661101", first[2])
	assert.Equal(t, "12.5", first[3])
	assert.Equal(t, "2025-10-10 12:00:00", first[4])
	assert.Equal(t, "sensor drift", first[6])
	assert.Equal(t, "已处理", first[8])
	assert.Equal(t, "第一团", first[12])
	assert.Equal(t, "第一师", first[13])

	// 无政区代码的记录
	second := rows[2]
	assert.Equal(t, "", second[2])
	assert.Equal(t, "待反馈", second[8])
}

func TestExport_HeaderStyleAndWidths(t *testing.T) {
	f, err := NewExporter().Export(ExportOptions{Items: sampleItems()})
	require.NoError(t, err)
	defer f.Close()

	styleID, err := f.GetCellStyle(DataSheet, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
	assert.Equal(t, "pattern", style.Fill.Type)

	// 测站编码：表头 4 字，加 2
	w, err := f.GetColWidth(DataSheet, "A")
	require.NoError(t, err)
	assert.Equal(t, 6.0, w)

	// 异常时间 19 字符，封顶 20
	w, err = f.GetColWidth(DataSheet, "E")
	require.NoError(t, err)
	assert.Equal(t, 20.0, w)
}

func TestExport_InfoSheet(t *testing.T) {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	f, err := NewExporter().Export(ExportOptions{
		Items:      sampleItems()[:1],
		Total:      37,
		Filter:     model.Filter{RegionPrefix: "6611", StartTime: &start, Status: model.StatusResolved},
		ExportedAt: time.Date(2025, 10, 11, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	got := reopen(t, f)
	_ = f.Close()

	rows, err := got.GetRows(InfoSheet)
	require.NoError(t, err)
	want := [][]string{
		{"导出时间", "2025-10-11 09:30:00"},
		{"总记录数", "37"},
		{"当前页记录数", "1"},
		{"政区代码", "6611"},
		{"测站编码", "全部"},
		{"测站名称", "全部"},
		{"起始时间", "2025-10-01 00:00:00"},
		{"终止时间", "全部"},
		{"状态", "已处理"},
	}
	assert.Equal(t, want, rows)
}

func TestExport_ReportsProgress(t *testing.T) {
	items := make([]model.ExceptionItem, 1000)
	for i := range items {
		items[i] = model.ExceptionItem{StationCode: "A001", ExceptionTime: "2025-10-10 12:00:00"}
	}

	var events []ProgressEvent
	f, err := NewExporter().Export(ExportOptions{
		Items:    items,
		Progress: func(e ProgressEvent) { events = append(events, e) },
	})
	require.NoError(t, err)
	defer f.Close()

	require.NotEmpty(t, events)
	assert.Equal(t, 5, events[0].Percent)
	assert.Equal(t, 100, events[len(events)-1].Percent)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent)
	}
}

func TestExport_EmptyItems(t *testing.T) {
	f, err := NewExporter().Export(ExportOptions{})
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(DataSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFileNameAndDisposition(t *testing.T) {
	at := time.Date(2025, 10, 11, 9, 30, 5, 0, time.UTC)
	assert.Equal(t, "异常数据导出_20251011_093005.xlsx", FileName(at))

	got := ContentDisposition(at)
	assert.Equal(t,
		"attachment; filename=\"exceptions_20251011_093005.xlsx\"; filename*=UTF-8''%E5%BC%82%E5%B8%B8%E6%95%B0%E6%8D%AE%E5%AF%BC%E5%87%BA_20251011_093005.xlsx",
		got)
}
