package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

const exceptionTable = "tzx_stcd_exce"

// 列表排序：异常时间倒序，同一时刻按测站编码，保证分页稳定
const exceptionOrder = " ORDER BY tm DESC, stcd ASC"

// dedupQuery 每个测站只保留 tm 最大的一条（在过滤后的集合内取最新）
func dedupQuery(pred Predicate) string {
	return "WITH base AS (SELECT " + exceptionColumns + " FROM " + exceptionTable + " WHERE " + pred.Where + ")" +
		" SELECT base.stcd, base.stnm, base.aid, base.tm, base.val, base.rem, base.insert_tm, base.re_name, base.status, base.re_time" +
		" FROM base JOIN (SELECT stcd, MAX(tm) AS max_tm FROM base GROUP BY stcd) latest" +
		" ON base.stcd = latest.stcd AND base.tm = latest.max_tm" +
		" ORDER BY base.tm DESC, base.stcd ASC"
}

func rawQuery(pred Predicate) string {
	return "SELECT " + exceptionColumns + " FROM " + exceptionTable + " WHERE " + pred.Where + exceptionOrder
}

func countQuery(pred Predicate, dedup bool) string {
	if dedup {
		return "SELECT COUNT(DISTINCT stcd) FROM " + exceptionTable + " WHERE " + pred.Where
	}
	return "SELECT COUNT(*) FROM " + exceptionTable + " WHERE " + pred.Where
}

func listQuery(f model.Filter) (string, Predicate, bool) {
	pred := BuildPredicate(f)
	if f.Status == model.StatusPending {
		return dedupQuery(pred), pred, true
	}
	return rawQuery(pred), pred, false
}

// FetchExceptions 分页查询异常数据，返回当前页记录与总数
// 待反馈状态下按测站去重（每站最新一条），总数为去重后的测站数。
func (s *Store) FetchExceptions(ctx context.Context, f model.Filter, page, pageSize int) ([]model.ExceptionRecord, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, model.NewValidationError("page", fmt.Sprintf("invalid page %d / page_size %d", page, pageSize))
	}

	query, pred, dedup := listQuery(f)

	var total int
	err := s.withRetry(ctx, "count_exceptions", func(ctx context.Context) error {
		return s.getContext(ctx, &total, countQuery(pred, dedup), pred.Args...)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count exceptions: %w", err)
	}

	// 先比较页码，避免超大 page 相乘溢出为负偏移
	if page > model.PageCount(total, pageSize) {
		return []model.ExceptionRecord{}, total, nil
	}
	offset := (page - 1) * pageSize

	args := append(append([]any{}, pred.Args...), pageSize, offset)
	var rows []exceptionRow
	err = s.withRetry(ctx, "fetch_exceptions", func(ctx context.Context) error {
		rows = rows[:0]
		return s.selectContext(ctx, &rows, query+" LIMIT ? OFFSET ?", args...)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch exceptions: %w", err)
	}

	return toModels(rows), total, nil
}

// FetchAllExceptions 查询全部符合条件的异常数据（导出用，去重规则同分页查询）
func (s *Store) FetchAllExceptions(ctx context.Context, f model.Filter) ([]model.ExceptionRecord, error) {
	query, pred, _ := listQuery(f)

	var rows []exceptionRow
	err := s.withRetry(ctx, "fetch_all_exceptions", func(ctx context.Context) error {
		rows = rows[:0]
		return s.selectContext(ctx, &rows, query, pred.Args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exceptions: %w", err)
	}

	return toModels(rows), nil
}

// FindPendingException 按 (stcd, tm) 查找待反馈记录
func (s *Store) FindPendingException(ctx context.Context, stcd string, tm time.Time) (*model.ExceptionRecord, error) {
	query := "SELECT " + exceptionColumns + " FROM " + exceptionTable + " WHERE stcd = ? AND tm = ? AND rem IS NULL"

	var row exceptionRow
	err := s.withRetry(ctx, "find_pending_exception", func(ctx context.Context) error {
		return s.getContext(ctx, &row, query, stcd, tm)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{StationCode: stcd, ExceptionTime: tm}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending exception: %w", err)
	}

	rec := row.toModel()
	return &rec, nil
}

// ResolveException 条件更新：仅当记录仍为待反馈时写入处理信息
// 影响行数为 0 说明记录已被并发处理，返回 *model.ConflictError。
func (s *Store) ResolveException(ctx context.Context, req model.ResolveRequest, resolvedAt time.Time) error {
	query := "UPDATE " + exceptionTable + " SET rem = ?, re_name = ?, status = ?, re_time = ?" +
		" WHERE stcd = ? AND tm = ? AND rem IS NULL"

	var (
		affected int64
		attempts int
	)
	err := s.withRetry(ctx, "resolve_exception", func(ctx context.Context) error {
		attempts++
		res, err := s.execContext(ctx, query,
			req.Remark, req.ResolverName, req.Status, resolvedAt,
			req.StationCode, req.ExceptionTime)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to resolve exception: %w", err)
	}

	if affected == 0 {
		// 前一次尝试可能已提交但驱动报错，重试时 0 行受影响；核对是否为本次写入
		if attempts > 1 {
			mine, err := s.resolvedWith(ctx, req, resolvedAt)
			if err != nil {
				return fmt.Errorf("failed to verify resolved exception: %w", err)
			}
			if mine {
				return nil
			}
		}
		return &model.ConflictError{StationCode: req.StationCode, ExceptionTime: req.ExceptionTime}
	}
	return nil
}

// resolvedWith 记录当前的处理信息是否与 req / resolvedAt 一致
func (s *Store) resolvedWith(ctx context.Context, req model.ResolveRequest, resolvedAt time.Time) (bool, error) {
	query := "SELECT " + exceptionColumns + " FROM " + exceptionTable + " WHERE stcd = ? AND tm = ?"

	var row exceptionRow
	err := s.withRetry(ctx, "verify_resolved_exception", func(ctx context.Context) error {
		return s.getContext(ctx, &row, query, req.StationCode, req.ExceptionTime)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return row.Remark.Valid && row.Remark.String == req.Remark &&
		row.ResolverName.Valid && row.ResolverName.String == req.ResolverName &&
		row.ResolvedAt.Valid && row.ResolvedAt.Time.Equal(model.WallClock(resolvedAt, nil)), nil
}

// InsertException 写入一条异常记录（测试数据 / seed 命令使用）
func (s *Store) InsertException(ctx context.Context, rec model.ExceptionRecord) error {
	insertedAt := rec.InsertedAt
	if insertedAt == nil {
		now := model.WallClock(time.Now(), nil)
		insertedAt = &now
	}

	query := "INSERT INTO " + exceptionTable + " (" + exceptionColumns + ")" +
		" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	err := s.withRetry(ctx, "insert_exception", func(ctx context.Context) error {
		_, err := s.execContext(ctx, query,
			rec.StationCode, rec.StationName, toNullString(rec.RegionID), rec.ExceptionTime, rec.Value,
			toNullString(rec.Remark), *insertedAt, toNullString(rec.ResolverName), toNullInt(rec.Status), rec.ResolvedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert exception %s@%s: %w", rec.StationCode, model.FormatTime(rec.ExceptionTime), err)
	}
	return nil
}
