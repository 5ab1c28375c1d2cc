// Package fallback is a JSON-file-backed order store used when the primary
// store is unreachable in non-production environments. The full record set
// is rewritten on every mutation; if the filesystem turns out to be
// read-only the store degrades to in-memory-only for the rest of the
// process lifetime.
package fallback

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rollworks/oms/internal/domain"
	"github.com/rollworks/oms/internal/query"
)

type Store struct {
	mu       sync.Mutex
	dir      string
	file     string
	logger   *zap.Logger
	now      func() time.Time
	inMemory bool
	orders   []domain.Order
	loaded   bool
}

func New(dir string, logger *zap.Logger) *Store {
	return &Store{
		dir:    dir,
		file:   filepath.Join(dir, "orders.json"),
		logger: logger,
		now:    time.Now,
	}
}

// init loads the persisted set on first use, or switches to in-memory mode
// when the directory cannot be created.
func (s *Store) init() {
	if s.loaded {
		return
	}
	s.loaded = true

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn("fallback store filesystem unavailable, using in-memory storage",
			zap.String("dir", s.dir),
			zap.Error(err),
		)
		s.inMemory = true
		return
	}

	data, err := os.ReadFile(s.file)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("fallback store unreadable, starting empty",
				zap.String("file", s.file),
				zap.Error(err),
			)
		}
		s.orders = []domain.Order{}
		return
	}
	if err := json.Unmarshal(data, &s.orders); err != nil {
		s.logger.Warn("fallback store corrupted, starting empty",
			zap.String("file", s.file),
			zap.Error(err),
		)
		s.orders = []domain.Order{}
	}
}

// readAll returns a copy of the full record set in insertion order.
func (s *Store) readAll() []domain.Order {
	s.init()
	out := make([]domain.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// write persists the full set. The file is written to a temp path and
// renamed so a failed write never leaves a partial file visible. A failed
// persist degrades the store to in-memory mode, logged once.
func (s *Store) write(orders []domain.Order) {
	s.orders = orders
	if s.inMemory {
		return
	}

	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		s.logger.Error("fallback store marshal failed", zap.Error(err))
		return
	}

	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err == nil {
		err = os.Rename(tmp, s.file)
		if err == nil {
			return
		}
	} else {
		_ = os.Remove(tmp)
	}
	s.logger.Warn("fallback store persist failed, switching to in-memory storage",
		zap.String("file", s.file),
	)
	s.inMemory = true
}

// newID builds a time-prefixed identifier with a random suffix. Unique
// within the process lifetime; concurrent writers across restarts are an
// accepted limitation of the fallback path.
func (s *Store) newID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return strconv.FormatInt(s.now().UnixMilli(), 10) + suffix
}

func (s *Store) List(_ context.Context, f domain.Filter) ([]domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f = f.Normalize()

	matched := query.Apply(s.readAll(), f)
	query.SortByCreatedDesc(matched)
	return query.Page(matched, f), len(matched), nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	for i := range s.orders {
		if s.orders[i].ID == id {
			o := s.orders[i]
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) Create(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	created := *order
	created.ID = s.newID()
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.OrderDate.IsZero() {
		created.OrderDate = now
	}

	orders := s.readAll()
	orders = append(orders, created)
	s.write(orders)
	return &created, nil
}

func (s *Store) UpdateByID(_ context.Context, id string, patch *domain.Order) (*domain.Order, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.readAll()
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		updated := orders[i]
		updated.CompanyName = patch.CompanyName
		updated.Broker = patch.Broker
		updated.Notes = patch.Notes
		updated.ExpectedDelivery = patch.ExpectedDelivery
		updated.Rolls = patch.Rolls
		if !patch.OrderDate.IsZero() {
			updated.OrderDate = patch.OrderDate
		}
		updated.UpdatedAt = s.now()

		orders[i] = updated
		s.write(orders)
		return &updated, nil
	}
	return nil, domain.ErrNotFound
}

func (s *Store) DeleteByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.readAll()
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		deleted := orders[i]
		orders = append(orders[:i], orders[i+1:]...)
		s.write(orders)
		return &deleted, nil
	}
	return nil, domain.ErrNotFound
}

func (s *Store) Count(_ context.Context, f domain.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(query.Apply(s.readAll(), f)), nil
}

func (s *Store) Overdue(_ context.Context, now time.Time) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query.Overdue(s.readAll(), now), nil
}

func (s *Store) Stats(_ context.Context, now time.Time) (*domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query.ComputeStats(s.readAll(), now), nil
}

func (s *Store) Analytics(_ context.Context, since time.Time) ([]domain.AnalyticsPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query.ComputeAnalytics(s.readAll(), since), nil
}
