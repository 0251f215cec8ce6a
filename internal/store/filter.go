package store

import (
	"strings"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// Predicate 参数化的 WHERE 条件（不含 WHERE 关键字）及其绑定参数
type Predicate struct {
	Where string
	Args  []any
}

// BuildPredicate 将查询条件转换为参数化谓词
// 时间范围总是存在：未指定的一端使用默认边界。
func BuildPredicate(f model.Filter) Predicate {
	var conditions []string
	var args []any

	if prefix := strings.TrimSpace(f.RegionPrefix); prefix != "" {
		conditions = append(conditions, `aid LIKE ? ESCAPE '\'`)
		args = append(args, escapeLikePattern(prefix)+"%")
	}
	if stcd := strings.TrimSpace(f.StationCode); stcd != "" {
		conditions = append(conditions, "stcd = ?")
		args = append(args, stcd)
	}
	if name := strings.TrimSpace(f.NameSubstring); name != "" {
		conditions = append(conditions, `stnm LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLikePattern(name)+"%")
	}

	start, end := model.DefaultStartTime, model.DefaultEndTime
	if f.StartTime != nil {
		start = *f.StartTime
	}
	if f.EndTime != nil {
		end = *f.EndTime
	}
	conditions = append(conditions, "tm >= ?", "tm <= ?")
	args = append(args, start, end)

	switch f.Status {
	case model.StatusPending:
		conditions = append(conditions, "rem IS NULL")
	case model.StatusResolved:
		conditions = append(conditions, "rem IS NOT NULL")
	}

	return Predicate{
		Where: strings.Join(conditions, " AND "),
		Args:  args,
	}
}

// escapeLikePattern 转义 LIKE 通配符（%、_）及转义符本身（\）
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
