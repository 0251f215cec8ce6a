package exception

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aidingjing/rain-gauge-api/internal/events"
	"github.com/aidingjing/rain-gauge-api/internal/model"
	"github.com/aidingjing/rain-gauge-api/internal/observability"
)

// Store 服务依赖的存储能力
type Store interface {
	FetchExceptions(ctx context.Context, f model.Filter, page, pageSize int) ([]model.ExceptionRecord, int, error)
	FetchAllExceptions(ctx context.Context, f model.Filter) ([]model.ExceptionRecord, error)
	FindPendingException(ctx context.Context, stcd string, tm time.Time) (*model.ExceptionRecord, error)
	ResolveException(ctx context.Context, req model.ResolveRequest, resolvedAt time.Time) error
	CountPendingExceptions(ctx context.Context) (int64, error)
	CountPendingStations(ctx context.Context) (int64, error)
	CountPendingRegions(ctx context.Context) (int64, error)
	LatestPendingTime(ctx context.Context) (*time.Time, error)
	Ping(ctx context.Context) error
}

// DefaultMaxPageSize 每页最大条数
const DefaultMaxPageSize = 100

// Service 异常数据业务服务
type Service struct {
	store       Store
	publisher   events.Publisher
	clock       clockwork.Clock
	loc         *time.Location
	logger      *zap.Logger
	metrics     *observability.Metrics
	validate    *validator.Validate
	maxPageSize int
}

// Option 服务可选配置
type Option func(*Service)

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation 业务时区（处理时间按该时区记录）
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

// New 创建服务
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		publisher:   events.NopPublisher{},
		clock:       clockwork.NewRealClock(),
		loc:         time.Local,
		logger:      zap.NewNop(),
		validate:    validator.New(),
		maxPageSize: DefaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxPageSize 每页最大条数
func (s *Service) MaxPageSize() int {
	return s.maxPageSize
}

// Now 当前业务时区墙上时间
func (s *Service) Now() time.Time {
	return model.WallClock(s.clock.Now(), s.loc)
}

// ListExceptions 分页查询异常数据
func (s *Service) ListExceptions(ctx context.Context, f model.Filter, page, pageSize int) (model.PagedResult, error) {
	if page < 1 {
		return model.PagedResult{}, model.NewValidationError("page", "page 必须大于等于 1")
	}
	if pageSize < 1 || pageSize > s.maxPageSize {
		return model.PagedResult{}, model.NewValidationError("page_size",
			fmt.Sprintf("page_size 必须在 1-%d 之间", s.maxPageSize))
	}
	if err := validateFilter(f); err != nil {
		return model.PagedResult{}, err
	}

	records, total, err := s.store.FetchExceptions(ctx, f, page, pageSize)
	if err != nil {
		return model.PagedResult{}, err
	}

	s.logger.Debug("exceptions listed",
		zap.Int("page", page),
		zap.Int("page_size", pageSize),
		zap.Int("total", total),
		zap.Int("items", len(records)))

	return model.PagedResult{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    model.PageCount(total, pageSize),
		Items:    toItems(records),
	}, nil
}

// ExportExceptions 查询全部符合条件的数据（不分页，去重规则同列表）
func (s *Service) ExportExceptions(ctx context.Context, f model.Filter) ([]model.ExceptionItem, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}

	records, err := s.store.FetchAllExceptions(ctx, f)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ExportedRows.Observe(float64(len(records)))
	}
	return toItems(records), nil
}

type resolveInput struct {
	StationCode  string `validate:"required,max=50"`
	Remark       string `validate:"required,max=500"`
	ResolverName string `validate:"required,max=100"`
	Status       int    `validate:"min=0,max=10"`
}

// ResolveException 填写异常原因：待反馈 -> 已处理
func (s *Service) ResolveException(ctx context.Context, req model.ResolveRequest) (model.ResolvedDetail, error) {
	req.StationCode = strings.TrimSpace(req.StationCode)
	req.Remark = strings.TrimSpace(req.Remark)
	req.ResolverName = strings.TrimSpace(req.ResolverName)

	if err := s.validateResolve(req); err != nil {
		return model.ResolvedDetail{}, err
	}

	current, err := s.store.FindPendingException(ctx, req.StationCode, req.ExceptionTime)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Info("no pending exception to resolve",
				zap.String("stcd", req.StationCode),
				zap.String("tm", model.FormatTime(req.ExceptionTime)))
		}
		return model.ResolvedDetail{}, err
	}

	resolvedAt := s.Now()
	if err := s.store.ResolveException(ctx, req, resolvedAt); err != nil {
		if errors.Is(err, model.ErrConflict) {
			if s.metrics != nil {
				s.metrics.ResolveConflicts.Inc()
			}
			s.logger.Warn("exception resolved concurrently",
				zap.String("stcd", req.StationCode),
				zap.String("tm", model.FormatTime(req.ExceptionTime)))
		}
		return model.ResolvedDetail{}, err
	}

	detail := model.ResolvedDetail{
		StationCode:   req.StationCode,
		StationName:   current.StationName,
		ExceptionTime: req.ExceptionTime,
		OldRemark:     current.Remark,
		NewRemark:     req.Remark,
		ResolverName:  req.ResolverName,
		Status:        req.Status,
		ResolvedAt:    resolvedAt,
	}

	if s.metrics != nil {
		s.metrics.ExceptionsResolved.Inc()
	}
	s.logger.Info("exception resolved",
		zap.String("stcd", detail.StationCode),
		zap.String("tm", model.FormatTime(detail.ExceptionTime)),
		zap.String("re_name", detail.ResolverName),
		zap.Int("status", detail.Status))

	// 事件推送失败不影响处理结果
	if err := s.publisher.PublishResolved(ctx, detail); err != nil {
		s.logger.Warn("failed to publish resolved event", zap.Error(err))
	}

	return detail, nil
}

// GetStatistics 待反馈异常统计；单项查询失败时该项取默认值
func (s *Service) GetStatistics(ctx context.Context) model.Statistics {
	var stats model.Statistics

	stats.PendingTotal = s.degradeCount(ctx, "pending_total", s.store.CountPendingExceptions)
	stats.DistinctPendingStations = s.degradeCount(ctx, "pending_stations", s.store.CountPendingStations)
	stats.DistinctPendingRegions = s.degradeCount(ctx, "pending_regions", s.store.CountPendingRegions)

	latest, err := s.store.LatestPendingTime(ctx)
	if err != nil {
		s.degraded("latest_exception_time", err)
	} else {
		stats.LatestExceptionTime = latest
	}

	return stats
}

func (s *Service) degradeCount(ctx context.Context, field string, fn func(context.Context) (int64, error)) int64 {
	n, err := fn(ctx)
	if err != nil {
		s.degraded(field, err)
		return 0
	}
	return n
}

func (s *Service) degraded(field string, err error) {
	if s.metrics != nil {
		s.metrics.StatisticsDegraded.WithLabelValues(field).Inc()
	}
	s.logger.Warn("statistics query failed, using default", zap.String("field", field), zap.Error(err))
}

// Regions 团场列表
func (s *Service) Regions() []model.RegionEntry {
	return model.Regions()
}

// HealthStatus 健康检查结果
type HealthStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Healthy 是否健康
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// Health 检查数据库连接
func (s *Service) Health(ctx context.Context) HealthStatus {
	ts := s.clock.Now().In(s.loc).Format(time.RFC3339)
	if err := s.store.Ping(ctx); err != nil {
		return HealthStatus{Status: "unhealthy", Message: "数据库连接异常: " + err.Error(), Timestamp: ts}
	}
	return HealthStatus{Status: "healthy", Message: "数据库连接正常", Timestamp: ts}
}

// Ready 就绪检查
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) validateResolve(req model.ResolveRequest) error {
	if req.ExceptionTime.IsZero() {
		return model.NewValidationError("tm", "异常时间不能为空")
	}

	err := s.validate.Struct(resolveInput{
		StationCode:  req.StationCode,
		Remark:       req.Remark,
		ResolverName: req.ResolverName,
		Status:       req.Status,
	})
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := resolveFieldNames[fe.Field()]
		switch fe.Tag() {
		case "required":
			return model.NewValidationError(field, field+" 不能为空")
		case "max":
			return model.NewValidationError(field, fmt.Sprintf("%s 长度不能超过 %s", field, fe.Param()))
		default:
			return model.NewValidationError(field, fmt.Sprintf("%s 超出范围 [0, 10]", field))
		}
	}
	return err
}

// 对外参数名
var resolveFieldNames = map[string]string{
	"StationCode":  "stcd",
	"Remark":       "rem",
	"ResolverName": "name",
	"Status":       "status",
}

func validateFilter(f model.Filter) error {
	if len([]rune(f.NameSubstring)) > 100 {
		return model.NewValidationError("name", "name 长度不能超过 100")
	}
	if f.StartTime != nil && f.EndTime != nil && f.StartTime.After(*f.EndTime) {
		return model.NewValidationError("bt", "起始时间不能晚于终止时间")
	}
	return nil
}

func toItems(records []model.ExceptionRecord) []model.ExceptionItem {
	items := make([]model.ExceptionItem, len(records))
	for i, r := range records {
		items[i] = model.NewExceptionItem(r)
	}
	return items
}
