package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// RetryPolicy 数据库访问重试策略
type RetryPolicy struct {
	MaxAttempts  int           // 总尝试次数（含首次）
	InitialDelay time.Duration // 首次重试前等待
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy 3 次尝试，等待 0.5s、1s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

func newBreaker(failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker {
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "storage",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 业务层面的失败（无数据、约束冲突、请求取消）不计入熔断
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
	})
}

// isPermanent 不可重试的错误
func isPermanent(err error) bool {
	if errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return true
	}

	// PostgreSQL 23xxx：完整性约束冲突
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		return true
	}

	return false
}

// withRetry 在重试策略（及可选熔断器）下执行数据库操作
// sql.ErrNoRows 原样返回，其余失败包装为 *model.StorageError。
func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	run := func() error {
		return backoff.RetryNotify(func() error {
			attempt++
			err := fn(ctx)
			if err != nil && isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}, s.retry.backOff(ctx), func(err error, wait time.Duration) {
			if s.metrics != nil {
				s.metrics.StorageRetries.WithLabelValues(op).Inc()
			}
			s.logger.Warn("storage operation failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		})
	}

	var err error
	if s.breaker != nil {
		_, err = s.breaker.Execute(func() (interface{}, error) {
			return nil, run()
		})
	} else {
		err = run()
	}

	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if s.metrics != nil {
		s.metrics.StorageFailures.WithLabelValues(op).Inc()
	}
	s.logger.Error("storage operation failed",
		zap.String("op", op),
		zap.Int("attempts", attempt),
		zap.Error(err))
	return &model.StorageError{Op: op, Err: err}
}
