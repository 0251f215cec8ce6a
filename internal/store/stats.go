package store

import (
	"context"
	"fmt"
	"time"
)

// 统计均只针对待反馈记录（rem IS NULL）；每个聚合独立查询，便于调用方分别降级

// CountPendingExceptions 待反馈记录总数（不去重）
func (s *Store) CountPendingExceptions(ctx context.Context) (int64, error) {
	return s.countPending(ctx, "count_pending", "SELECT COUNT(*) FROM "+exceptionTable+" WHERE rem IS NULL")
}

// CountPendingStations 存在待反馈记录的测站数
func (s *Store) CountPendingStations(ctx context.Context) (int64, error) {
	return s.countPending(ctx, "count_pending_stations", "SELECT COUNT(DISTINCT stcd) FROM "+exceptionTable+" WHERE rem IS NULL")
}

// CountPendingRegions 存在待反馈记录的团场数
func (s *Store) CountPendingRegions(ctx context.Context) (int64, error) {
	return s.countPending(ctx, "count_pending_regions",
		"SELECT COUNT(DISTINCT aid) FROM "+exceptionTable+" WHERE rem IS NULL AND aid IS NOT NULL")
}

// LatestPendingTime 最新的待反馈异常时间；无待反馈记录时返回 nil
func (s *Store) LatestPendingTime(ctx context.Context) (*time.Time, error) {
	var latest dbTime
	err := s.withRetry(ctx, "latest_pending_time", func(ctx context.Context) error {
		return s.getContext(ctx, &latest, "SELECT MAX(tm) FROM "+exceptionTable+" WHERE rem IS NULL")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query latest pending time: %w", err)
	}
	return latest.ptr(), nil
}

func (s *Store) countPending(ctx context.Context, op, query string) (int64, error) {
	var n int64
	err := s.withRetry(ctx, op, func(ctx context.Context) error {
		return s.getContext(ctx, &n, query)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	return n, nil
}
