// Package ingest processes order-create messages from the bulk intake
// topic, feeding them through the same orchestration service the REST API
// uses. A circuit breaker sheds load while the stores are struggling and
// transient failures are retried with backoff.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rollworks/oms/internal/config"
	"github.com/rollworks/oms/internal/domain"
	"github.com/rollworks/oms/internal/observability"
	"github.com/rollworks/oms/internal/pkg/breaker"
	"github.com/rollworks/oms/internal/pkg/retry"
)

var (
	ErrBadJSON     = errors.New("bad json")
	ErrCreate      = errors.New("create failed")
	ErrCircuitOpen = errors.New("circuit breaker open")
)

type Service interface {
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
}

type Handler struct {
	service     Service
	breaker     *breaker.Breaker
	retryPolicy config.Retry
	logger      *zap.Logger
	metrics     observability.Metrics
}

func NewHandler(service Service, brk *breaker.Breaker, retryPolicy config.Retry, logger *zap.Logger, metrics observability.Metrics) *Handler {
	if metrics == nil {
		metrics = observability.NewNoop()
	}
	return &Handler{
		service:     service,
		breaker:     brk,
		retryPolicy: retryPolicy,
		logger:      logger,
		metrics:     metrics,
	}
}

// Handle processes a single message. The consumer commits the offset only
// after Handle returns nil. Validation failures are terminal: retrying a
// malformed document cannot succeed, so the error is returned without
// retries and without tripping the breaker threshold further.
func (h *Handler) Handle(ctx context.Context, message kafkago.Message) error {
	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("circuit breaker is open",
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	start := time.Now()

	var order domain.Order
	if err := json.Unmarshal(message.Value, &order); err != nil {
		h.logger.Error("bad json format",
			zap.Error(err),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		h.breaker.Failure()
		h.metrics.ObserveConsumer(msSince(start), false)
		return ErrBadJSON
	}
	if err := order.Validate(); err != nil {
		h.logger.Error("invalid order document",
			zap.Error(err),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		h.breaker.Failure()
		h.metrics.ObserveConsumer(msSince(start), false)
		return ErrBadJSON
	}

	err := retry.Do(ctx, h.retryPolicy, func() error {
		_, err := h.service.Create(ctx, &order)
		return err
	})
	if err != nil {
		h.logger.Error("create failed after retries",
			zap.String("company", order.CompanyName),
			zap.Error(err),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		h.breaker.Failure()
		h.metrics.ObserveConsumer(msSince(start), false)
		return ErrCreate
	}

	h.breaker.Success()
	h.metrics.ObserveConsumer(msSince(start), true)
	h.logger.Info("ingested order",
		zap.String("company", order.CompanyName),
		zap.Int("partition", message.Partition),
		zap.Int64("offset", message.Offset),
		zap.Int("value_bytes", len(message.Value)),
	)
	return nil
}

func msSince(t0 time.Time) float64 {
	return float64(time.Since(t0).Microseconds()) / 1000.0
}
