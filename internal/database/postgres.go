package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rollworks/oms/internal/config"
	"github.com/rollworks/oms/internal/domain"
)

// connectTimeout bounds connection establishment and readiness probes so a
// request never hangs on a dead store.
const connectTimeout = 5 * time.Second

// Repo is the record store adapter over Postgres. Orders live in a single
// table with the rolls embedded as a jsonb array, mirroring the document
// layout. Operations do not retry; callers check Ready first.
type Repo struct {
	pool   *pgxpool.Pool
	tables config.Tables
}

func New(pool *pgxpool.Pool, t config.Tables) *Repo { return &Repo{pool: pool, tables: t} }

// Connect builds the pool without pinging: the store may be down at boot
// and come up later, readiness is probed per call via Ready.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.ConnectTimeout = connectTimeout
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Ready is the per-call connectivity probe consulted by the orchestration
// service before routing an operation here.
func (r *Repo) Ready(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return r.pool.Ping(pingCtx) == nil
}

func (r *Repo) qt() string {
	return fmt.Sprintf(`"%s"."%s"`, r.tables.Schema, r.tables.Orders)
}

const orderColumns = `id, company_name, broker, order_date, expected_delivery, notes, rolls, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o     domain.Order
		rolls []byte
	)
	err := row.Scan(&o.ID, &o.CompanyName, &o.Broker, &o.OrderDate, &o.ExpectedDelivery,
		&o.Notes, &rolls, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rolls) > 0 {
		if err := json.Unmarshal(rolls, &o.Rolls); err != nil {
			return nil, err
		}
	}
	if o.Rolls == nil {
		o.Rolls = []domain.Roll{}
	}
	return &o, nil
}

// where builds the AND predicate for a filter. Status and grade match when
// any element of the rolls array satisfies the equality; company name is a
// case-insensitive substring.
func (r *Repo) where(f domain.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM jsonb_array_elements(rolls) roll WHERE roll->>'status' = $%d)`, len(args)))
	}
	if f.Grade != "" {
		args = append(args, f.Grade)
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM jsonb_array_elements(rolls) roll WHERE roll->>'grade' = $%d)`, len(args)))
	}
	if f.CompanyName != "" {
		args = append(args, "%"+f.CompanyName+"%")
		conds = append(conds, fmt.Sprintf(`company_name ILIKE $%d`, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repo) List(ctx context.Context, f domain.Filter) ([]domain.Order, int, error) {
	f = f.Normalize()
	where, args := r.where(f)

	total, err := r.count(ctx, where, args)
	if err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, f.Limit, f.Skip())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM %s%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, orderColumns, r.qt(), where, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *Repo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE id=$1
	`, orderColumns, r.qt()), id)
	return scanOrder(row)
}

func (r *Repo) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	rolls, err := marshalRolls(order.Rolls)
	if err != nil {
		return nil, err
	}

	orderDate := order.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, company_name, broker, order_date, expected_delivery, notes, rolls)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING %s
	`, r.qt(), orderColumns),
		uuid.NewString(), order.CompanyName, order.Broker, orderDate,
		order.ExpectedDelivery, order.Notes, rolls,
	)
	return scanOrder(row)
}

func (r *Repo) UpdateByID(ctx context.Context, id string, patch *domain.Order) (*domain.Order, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	rolls, err := marshalRolls(patch.Rolls)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s SET
		  company_name=$2,
		  broker=$3,
		  order_date=COALESCE(NULLIF($4::timestamptz, 'epoch'::timestamptz), order_date),
		  expected_delivery=$5,
		  notes=$6,
		  rolls=$7,
		  updated_at=now()
		WHERE id=$1
		RETURNING %s
	`, r.qt(), orderColumns),
		id, patch.CompanyName, patch.Broker, zeroToEpoch(patch.OrderDate),
		patch.ExpectedDelivery, patch.Notes, rolls,
	)
	return scanOrder(row)
}

func (r *Repo) DeleteByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE id=$1
		RETURNING %s
	`, r.qt(), orderColumns), id)
	return scanOrder(row)
}

func (r *Repo) Count(ctx context.Context, f domain.Filter) (int, error) {
	where, args := r.where(f)
	return r.count(ctx, where, args)
}

func (r *Repo) count(ctx context.Context, where string, args []any) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s%s`, r.qt(), where), args...).Scan(&total)
	return total, err
}

func (r *Repo) Overdue(ctx context.Context, now time.Time) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE expected_delivery IS NOT NULL
		  AND expected_delivery < $1
		  AND jsonb_array_length(rolls) > 0
		  AND EXISTS (SELECT 1 FROM jsonb_array_elements(rolls) roll WHERE roll->>'status' <> $2)
		ORDER BY expected_delivery ASC
	`, orderColumns, r.qt()), now, string(domain.StatusDispatched))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *Repo) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	st := &domain.Stats{LastUpdated: now}
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT
		  count(*),
		  count(*) FILTER (WHERE EXISTS (
		    SELECT 1 FROM jsonb_array_elements(rolls) roll WHERE roll->>'status' = $1)),
		  count(*) FILTER (WHERE jsonb_array_length(rolls) > 0 AND NOT EXISTS (
		    SELECT 1 FROM jsonb_array_elements(rolls) roll WHERE roll->>'status' <> $2))
		FROM %s
	`, r.qt()), string(domain.StatusPending), string(domain.StatusDispatched)).
		Scan(&st.TotalOrders, &st.PendingOrders, &st.CompletedOrders)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (r *Repo) Analytics(ctx context.Context, since time.Time) ([]domain.AnalyticsPoint, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       count(*),
		       coalesce(sum(jsonb_array_length(rolls)), 0)
		FROM %s
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day ASC
	`, r.qt()), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.AnalyticsPoint{}
	for rows.Next() {
		var p domain.AnalyticsPoint
		if err := rows.Scan(&p.Date, &p.OrderCount, &p.RollCount); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func marshalRolls(rolls []domain.Roll) ([]byte, error) {
	if rolls == nil {
		rolls = []domain.Roll{}
	}
	return json.Marshal(rolls)
}

// zeroToEpoch maps a zero order date to the epoch sentinel understood by the
// COALESCE/NULLIF in UpdateByID, which keeps the stored date unchanged.
func zeroToEpoch(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}
