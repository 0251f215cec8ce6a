package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/aidingjing/rain-gauge-api/internal/model"
	"github.com/aidingjing/rain-gauge-api/internal/observability"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

//go:embed schema_sqlite.sql schema_postgres.sql
var schemaFS embed.FS

// Store 异常数据存储层（SQLite / PostgreSQL）
type Store struct {
	db      *sqlx.DB
	logger  *zap.Logger
	metrics *observability.Metrics
	retry   RetryPolicy
	breaker *gobreaker.CircuitBreaker
}

// Option Store 可选配置
type Option func(*Store)

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithRetryPolicy 设置重试策略
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Store) { s.retry = p.normalized() }
}

// WithCircuitBreaker 启用熔断：连续 failures 次失败后熔断 timeout 时长
func WithCircuitBreaker(failures uint32, timeout time.Duration) Option {
	return func(s *Store) {
		s.breaker = newBreaker(failures, timeout)
	}
}

// New 创建 SQLite Store 实例
func New(dbPath string, opts ...Option) (*Store, error) {
	// 确保 data 目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Open(context.Background(), DriverSQLite, dbPath, opts...)
}

// Open 按驱动打开数据库并初始化表结构
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite 建议单连接
		db.SetMaxIdleConns(1)
	}

	s := NewWithDB(db, opts...)

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// NewWithDB 基于已有连接创建 Store（不初始化表结构）
func NewWithDB(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: zap.NewNop(),
		retry:  DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// initSchema 初始化数据库结构
func (s *Store) initSchema(ctx context.Context) error {
	name := "schema_sqlite.sql"
	if s.db.DriverName() == DriverPostgres {
		name = "schema_postgres.sql"
	}
	schemaSQL, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	// 执行建表语句
	if _, err := s.db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping 检查数据库连接
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Exec 执行 SQL 语句（占位符统一使用 ?）
func (s *Store) Exec(query string, args ...any) error {
	_, err := s.db.Exec(s.db.Rebind(query), s.bindArgs(args)...)
	return err
}

// bindArgs 转换绑定参数：SQLite 的时间列以 "YYYY-MM-DD HH:MM:SS" 文本存储，
// 这样与外部写入的数据可以直接按字符串比较。
func (s *Store) bindArgs(args []any) []any {
	if s.db.DriverName() != DriverSQLite {
		return args
	}
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case time.Time:
			out[i] = model.FormatTime(v)
		case *time.Time:
			if v == nil {
				out[i] = nil
			} else {
				out[i] = model.FormatTime(*v)
			}
		default:
			out[i] = a
		}
	}
	return out
}

func (s *Store) selectContext(ctx context.Context, dest any, query string, args ...any) error {
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), s.bindArgs(args)...)
}

func (s *Store) getContext(ctx context.Context, dest any, query string, args ...any) error {
	return s.db.GetContext(ctx, dest, s.db.Rebind(query), s.bindArgs(args)...)
}

func (s *Store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.db.Rebind(query), s.bindArgs(args)...)
}
