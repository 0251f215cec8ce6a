package model

import (
	"strings"
	"time"
)

// ExceptionRecord 测站异常记录（tzx_stcd_exce 表）
// (StationCode, ExceptionTime) 唯一标识一条记录；Remark 为 nil 表示待反馈。
type ExceptionRecord struct {
	StationCode   string
	StationName   string
	RegionID      *string
	ExceptionTime time.Time
	Value         float64
	Remark        *string
	InsertedAt    *time.Time
	ResolverName  *string
	Status        *int
	ResolvedAt    *time.Time
}

// Pending 是否待反馈
func (r ExceptionRecord) Pending() bool {
	return r.Remark == nil
}

// StatusFilter 查询状态过滤
type StatusFilter int

const (
	StatusPending  StatusFilter = 0 // 待反馈（rem IS NULL）
	StatusResolved StatusFilter = 1 // 已处理（rem IS NOT NULL）
	StatusAll      StatusFilter = 2 // 所有记录
)

// ParseStatusFilter 解析 status 参数，支持数字与英文名称，空串视为待反馈
func ParseStatusFilter(raw string) (StatusFilter, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "pending":
		return StatusPending, nil
	case "1", "resolved":
		return StatusResolved, nil
	case "2", "all":
		return StatusAll, nil
	}
	return StatusPending, NewValidationError("status", "status 必须为 0、1、2 之一")
}

// Label 状态中文描述（导出信息页使用）
func (s StatusFilter) Label() string {
	switch s {
	case StatusPending:
		return "待反馈"
	case StatusResolved:
		return "已处理"
	case StatusAll:
		return "所有记录"
	default:
		return "未知状态"
	}
}

// Filter 异常数据查询条件
type Filter struct {
	RegionPrefix  string     // 政区代码前缀（adcd / aid）
	StationCode   string     // 测站编码，精确匹配
	NameSubstring string     // 测站名称，模糊匹配
	StartTime     *time.Time // 起始时间（含）
	EndTime       *time.Time // 终止时间（含）
	Status        StatusFilter
}

// ResolveRequest 填写异常原因请求
type ResolveRequest struct {
	StationCode   string
	ExceptionTime time.Time
	Remark        string
	ResolverName  string
	Status        int
}

// ResolvedDetail 异常处理结果
type ResolvedDetail struct {
	StationCode   string
	StationName   string
	ExceptionTime time.Time
	OldRemark     *string
	NewRemark     string
	ResolverName  string
	Status        int
	ResolvedAt    time.Time
}

// Statistics 待反馈异常统计
type Statistics struct {
	PendingTotal            int64
	DistinctPendingStations int64
	DistinctPendingRegions  int64
	LatestExceptionTime     *time.Time
}

// ExceptionItem 异常数据列表项（附带市县及经纬度）
type ExceptionItem struct {
	StationCode   string   `json:"stcd"`
	StationName   string   `json:"stnm"`
	RegionID      *string  `json:"aid"`
	Value         float64  `json:"val"`
	Remark        *string  `json:"rem"`
	ExceptionTime string   `json:"tm"`
	InsertedAt    *string  `json:"insert_tm"`
	ResolverName  *string  `json:"re_name"`
	Status        *int     `json:"status"`
	ResolvedAt    *string  `json:"re_time"`
	Prefecture    string   `json:"shi"`
	County        string   `json:"xian"`
	Longitude     *float64 `json:"lgtd"`
	Latitude      *float64 `json:"lttd"`
}

// NewExceptionItem 将记录转换为列表项，并补充行政区划信息
func NewExceptionItem(r ExceptionRecord) ExceptionItem {
	region := LookupRegion(r.RegionID)
	return ExceptionItem{
		StationCode:   r.StationCode,
		StationName:   r.StationName,
		RegionID:      r.RegionID,
		Value:         r.Value,
		Remark:        r.Remark,
		ExceptionTime: FormatTime(r.ExceptionTime),
		InsertedAt:    formatTimePtr(r.InsertedAt),
		ResolverName:  r.ResolverName,
		Status:        r.Status,
		ResolvedAt:    formatTimePtr(r.ResolvedAt),
		Prefecture:    region.Prefecture,
		County:        region.County,
		Longitude:     region.Longitude,
		Latitude:      region.Latitude,
	}
}

// StatusText 处理状态文本；status 为空时按备注是否为空推断
func (it ExceptionItem) StatusText() string {
	status := it.Status
	if status == nil {
		if it.Remark == nil {
			return StatusPending.Label()
		}
		return StatusResolved.Label()
	}
	switch *status {
	case 0:
		return StatusPending.Label()
	case 1:
		return StatusResolved.Label()
	default:
		return "未知状态"
	}
}

// PagedResult 分页结果
type PagedResult struct {
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Pages    int             `json:"pages"`
	Items    []ExceptionItem `json:"items"`
}

// PageCount 计算总页数
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}
