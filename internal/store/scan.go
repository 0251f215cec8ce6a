package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

const exceptionColumns = "stcd, stnm, aid, tm, val, rem, insert_tm, re_name, status, re_time"

// exceptionRow tzx_stcd_exce 行映射
type exceptionRow struct {
	StationCode  string          `db:"stcd"`
	StationName  sql.NullString  `db:"stnm"`
	RegionID     sql.NullString  `db:"aid"`
	Time         dbTime          `db:"tm"`
	Value        sql.NullFloat64 `db:"val"`
	Remark       sql.NullString  `db:"rem"`
	InsertedAt   dbTime          `db:"insert_tm"`
	ResolverName sql.NullString  `db:"re_name"`
	Status       sql.NullInt64   `db:"status"`
	ResolvedAt   dbTime          `db:"re_time"`
}

func (r exceptionRow) toModel() model.ExceptionRecord {
	return model.ExceptionRecord{
		StationCode:   r.StationCode,
		StationName:   r.StationName.String,
		RegionID:      fromNullString(r.RegionID),
		ExceptionTime: r.Time.Time,
		Value:         r.Value.Float64,
		Remark:        fromNullString(r.Remark),
		InsertedAt:    r.InsertedAt.ptr(),
		ResolverName:  fromNullString(r.ResolverName),
		Status:        fromNullInt(r.Status),
		ResolvedAt:    r.ResolvedAt.ptr(),
	}
}

func toModels(rows []exceptionRow) []model.ExceptionRecord {
	out := make([]model.ExceptionRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out
}

// dbTime 可为空的时间列
// SQLite 对聚合结果（MAX(tm)）不带声明类型，驱动会返回字符串，这里统一解析。
type dbTime struct {
	Time  time.Time
	Valid bool
}

var dbTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02",
}

func (t *dbTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = model.WallClock(v, nil), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("unsupported time value %T", value)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range dbTimeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = model.WallClock(v, nil), true
			return nil
		}
	}
	return fmt.Errorf("unrecognized time format %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func fromNullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func toNullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func toNullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
