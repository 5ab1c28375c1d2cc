package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rollworks/oms/internal/domain"
	"github.com/rollworks/oms/internal/observability"
	"github.com/rollworks/oms/internal/service"
)

//go:generate mockgen -source internal/httpapi/httpapi.go -destination=internal/httpapi/httpapi_mock_test.go -package=httpapi

// OrderService is what the route handlers need from the orchestration
// service.
type OrderService interface {
	List(ctx context.Context, f domain.Filter) (service.ListResult, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Overdue(ctx context.Context) ([]domain.Order, error)
	Stats(ctx context.Context) (*domain.Stats, error)
	Analytics(ctx context.Context, rangeDays int) ([]domain.AnalyticsPoint, error)
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	Update(ctx context.Context, id string, patch *domain.Order) (*domain.Order, error)
	Delete(ctx context.Context, id string) error
	Health(ctx context.Context) service.HealthStatus
}

type Server struct {
	service OrderService
	router  chi.Router
	logger  *zap.Logger
	metrics observability.Metrics
}

func New(svc OrderService, logger *zap.Logger, metrics observability.Metrics) *Server {
	s := &Server{
		service: svc,
		logger:  logger,
		metrics: metrics,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		ServerTimingApp(s.metrics),
	)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.listOrders)
		r.Get("/overdue", s.overdueOrders)
		r.Get("/stats", s.orderStats)
		r.Get("/analytics", s.orderAnalytics)
		r.Get("/health", s.storageHealth)
		r.Post("/", s.createOrder)
		r.Get("/{id}", s.getOrder)
		r.Put("/{id}", s.updateOrder)
		r.Delete("/{id}", s.deleteOrder)
	})

	s.router = r
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.Filter{
		Status:      q.Get("status"),
		Grade:       q.Get("grade"),
		CompanyName: q.Get("companyName"),
		Page:        atoiDefault(q.Get("page"), 0),
		Limit:       atoiDefault(q.Get("limit"), 0),
	}

	result, err := s.service.List(r.Context(), f)
	if err != nil {
		s.writeError(w, "Failed to fetch orders", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "Failed to fetch order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) overdueOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.service.Overdue(r.Context())
	if err != nil {
		s.writeError(w, "Failed to fetch overdue orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) orderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.writeError(w, "Failed to fetch statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) orderAnalytics(w http.ResponseWriter, r *http.Request) {
	points, err := s.service.Analytics(r.Context(), parseRange(r.URL.Query().Get("range")))
	if err != nil {
		s.writeError(w, "Failed to fetch analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) storageHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Health(r.Context()))
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := s.decodeOrder(w, r)
	if !ok {
		return
	}
	created, err := s.service.Create(r.Context(), order)
	if err != nil {
		s.writeError(w, "Failed to create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := s.decodeOrder(w, r)
	if !ok {
		return
	}
	updated, err := s.service.Update(r.Context(), chi.URLParam(r, "id"), order)
	if err != nil {
		s.writeError(w, "Failed to update order", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, "Failed to delete order", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}

func (s *Server) decodeOrder(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType,
			map[string]string{"message": "Content-Type must be application/json"})
		return nil, false
	}
	var order domain.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		s.logger.Error("bad json body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad json"})
		return nil, false
	}
	return &order, true
}

// writeError maps domain errors onto status codes. Validation and
// not-found are client-facing and specific; everything else is logged and
// surfaced as a generic message plus the error string.
func (s *Server) writeError(w http.ResponseWriter, msg string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": verr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
	case errors.Is(err, domain.ErrUnavailable):
		s.logger.Error("no store available", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"message": msg,
			"error":   err.Error(),
		})
	default:
		s.logger.Error(msg, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": msg,
			"error":   err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// parseRange turns "30d" style range parameters into a day count,
// defaulting to 30.
func parseRange(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "d")
	if s == "" {
		return 30
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 30
	}
	return n
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	return srv.ListenAndServe()
}
