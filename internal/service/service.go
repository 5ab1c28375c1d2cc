// Package service is the façade behind every route handler. It picks the
// backing store per call (primary when ready, fallback in development,
// unavailable otherwise), wraps primary-store reads in the cache layer and
// invalidates query classes after mutations.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rollworks/oms/internal/cache"
	"github.com/rollworks/oms/internal/config"
	"github.com/rollworks/oms/internal/domain"
	"github.com/rollworks/oms/internal/observability"
)

//go:generate mockgen -source internal/service/service.go -destination=internal/service/service_mock_test.go -package=service

// Connectivity reports whether the primary store can take an operation
// right now. Queried fresh on every call; the selection is never sticky.
type Connectivity interface {
	Ready(ctx context.Context) bool
}

// BlobChecker probes the attachment store for the health endpoint.
type BlobChecker interface {
	Healthy(ctx context.Context) bool
}

type Params struct {
	Primary  domain.OrderRepository
	Fallback domain.OrderRepository
	Conn     Connectivity
	Cache    *cache.Cache
	Env      config.Environment
	Blob     BlobChecker
	Logger   *zap.Logger
	Metrics  observability.Metrics
}

type Service struct {
	primary  domain.OrderRepository
	fallback domain.OrderRepository
	conn     Connectivity
	cache    *cache.Cache
	env      config.Environment
	blob     BlobChecker
	logger   *zap.Logger
	metrics  observability.Metrics
	now      func() time.Time
}

func New(p Params) *Service {
	m := p.Metrics
	if m == nil {
		m = observability.NewNoop()
	}
	return &Service{
		primary:  p.Primary,
		fallback: p.Fallback,
		conn:     p.Conn,
		cache:    p.Cache,
		env:      p.Env,
		blob:     p.Blob,
		logger:   p.Logger,
		metrics:  m,
		now:      time.Now,
	}
}

// selectStore decides which store serves this call. Reads against the
// primary are additionally wrapped by the cache; the fallback path is
// never cached.
func (s *Service) selectStore(ctx context.Context) (repo domain.OrderRepository, cached bool, err error) {
	if s.conn.Ready(ctx) {
		return s.primary, true, nil
	}
	if s.env == config.EnvDevelopment && s.fallback != nil {
		s.logger.Info("primary store not ready, using fallback store (development only)")
		return s.fallback, false, nil
	}
	return nil, false, domain.ErrUnavailable
}

// ListResult is the paginated list envelope.
type ListResult struct {
	Orders     []domain.Order    `json:"orders"`
	Pagination domain.Pagination `json:"pagination"`
}

func (s *Service) List(ctx context.Context, f domain.Filter) (ListResult, error) {
	f = f.Normalize()
	store, cached, err := s.selectStore(ctx)
	if err != nil {
		return ListResult{}, err
	}

	fetch := func(ctx context.Context) (ListResult, error) {
		orders, total, err := store.List(ctx, f)
		if err != nil {
			return ListResult{}, err
		}
		return ListResult{
			Orders: orders,
			Pagination: domain.Pagination{
				Total: total,
				Page:  f.Page,
				Pages: f.Pages(total),
			},
		}, nil
	}

	if !cached {
		return fetch(ctx)
	}
	return cachedFetch(ctx, s, "orders", cache.Key("orders:list", f), cache.TTLOrders, fetch)
}

// GetByID reads a single order, uncached.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	store, _, err := s.selectStore(ctx)
	if err != nil {
		return nil, err
	}
	return store.GetByID(ctx, id)
}

func (s *Service) Overdue(ctx context.Context) ([]domain.Order, error) {
	store, _, err := s.selectStore(ctx)
	if err != nil {
		return nil, err
	}
	return store.Overdue(ctx, s.now())
}

func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	store, cached, err := s.selectStore(ctx)
	if err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) (*domain.Stats, error) {
		return store.Stats(ctx, s.now())
	}
	if !cached {
		return fetch(ctx)
	}
	return cachedFetch(ctx, s, "stats", "dashboard:stats", cache.TTLStats, fetch)
}

func (s *Service) Analytics(ctx context.Context, rangeDays int) ([]domain.AnalyticsPoint, error) {
	if rangeDays <= 0 {
		rangeDays = 30
	}
	store, cached, err := s.selectStore(ctx)
	if err != nil {
		return nil, err
	}
	since := s.now().AddDate(0, 0, -rangeDays)
	fetch := func(ctx context.Context) ([]domain.AnalyticsPoint, error) {
		return store.Analytics(ctx, since)
	}
	if !cached {
		return fetch(ctx)
	}
	key := cache.Key("analytics:orders", rangeDays)
	return cachedFetch(ctx, s, "analytics", key, cache.TTLAnalytics, fetch)
}

func (s *Service) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	store, _, err := s.selectStore(ctx)
	if err != nil {
		return nil, err
	}

	t0 := s.now()
	created, err := store.Create(ctx, order)
	if err != nil {
		s.logger.Error("order create failed", zap.Error(err))
		return nil, err
	}
	s.metrics.ObserveWrite("create", s.msSince(t0))
	s.invalidate()

	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.Int("rolls", len(created.Rolls)),
	)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id string, patch *domain.Order) (*domain.Order, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	store, _, err := s.selectStore(ctx)
	if err != nil {
		return nil, err
	}

	t0 := s.now()
	updated, err := store.UpdateByID(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveWrite("update", s.msSince(t0))
	s.invalidate()

	s.logger.Info("order updated", zap.String("order_id", id))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	store, _, err := s.selectStore(ctx)
	if err != nil {
		return err
	}

	t0 := s.now()
	if _, err := store.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.metrics.ObserveWrite("delete", s.msSince(t0))
	s.invalidate()

	s.logger.Info("order deleted", zap.String("order_id", id))
	return nil
}

// invalidate drops the query classes a write can affect. Best-effort: the
// cache layer never propagates medium failures.
func (s *Service) invalidate() {
	dropped := s.cache.Invalidate("dashboard")
	dropped += s.cache.Invalidate("orders")
	if dropped > 0 {
		s.logger.Debug("cache invalidated", zap.Int("keys", dropped))
	}
}

// HealthStatus reports subsystem reachability. The "mongodb" wire key is
// the one the existing dashboard client reads; it reflects the primary
// store whatever backs it.
type HealthStatus struct {
	Database  bool      `json:"mongodb"`
	Cache     bool      `json:"cache"`
	Blob      bool      `json:"blob"`
	Timestamp time.Time `json:"timestamp"`
}

// Health never fails; unreachable subsystems degrade their field to false.
func (s *Service) Health(ctx context.Context) HealthStatus {
	h := HealthStatus{Timestamp: s.now()}
	h.Database = s.conn.Ready(ctx)
	h.Cache = s.cache.Healthy()
	if s.blob != nil {
		h.Blob = s.blob.Healthy(ctx)
	}
	return h
}

// cachedFetch wraps a primary-store read in the cache layer and records
// hit/miss metrics.
func cachedFetch[T any](ctx context.Context, s *Service, op, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	t0 := s.now()
	got, outcome, err := cache.GetOrCompute(ctx, s.cache, key, ttl, fn)
	if err != nil {
		return got, err
	}

	switch outcome.Source {
	case cache.SourceHit:
		s.metrics.IncCacheHit()
		s.metrics.ObserveQuery(op, "cache", s.msSince(t0))
	case cache.SourceMiss:
		s.metrics.IncCacheMiss()
		s.metrics.ObserveQuery(op, "db", s.msSince(t0))
	case cache.SourceDegraded:
		s.metrics.ObserveQuery(op, "degraded", s.msSince(t0))
	}
	return got, nil
}

// msSince measures against the service clock so durations stay coherent
// when the clock is injected.
func (s *Service) msSince(t0 time.Time) float64 {
	return float64(s.now().Sub(t0).Microseconds()) / 1000.0
}
