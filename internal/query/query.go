// Package query implements filtering, pagination and aggregation over
// in-memory order sets. It backs the fallback store; the Postgres adapter
// expresses the same semantics in SQL.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/rollworks/oms/internal/domain"
)

// Match reports whether an order satisfies every set field of the filter.
func Match(o *domain.Order, f domain.Filter) bool {
	if f.CompanyName != "" &&
		!strings.Contains(strings.ToLower(o.CompanyName), strings.ToLower(f.CompanyName)) {
		return false
	}
	if f.Status != "" && !o.HasStatus(domain.RollStatus(f.Status)) {
		return false
	}
	if f.Grade != "" {
		found := false
		for _, r := range o.Rolls {
			if r.Grade == f.Grade {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply returns the orders matching the filter, ignoring pagination.
func Apply(orders []domain.Order, f domain.Filter) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for i := range orders {
		if Match(&orders[i], f) {
			out = append(out, orders[i])
		}
	}
	return out
}

// SortByCreatedDesc orders newest first, the listing order of every read path.
func SortByCreatedDesc(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// Page slices one page out of an already sorted order set.
func Page(orders []domain.Order, f domain.Filter) []domain.Order {
	skip := f.Skip()
	if skip >= len(orders) {
		return []domain.Order{}
	}
	end := skip + f.Limit
	if end > len(orders) {
		end = len(orders)
	}
	return orders[skip:end]
}

// Overdue returns the orders past their expected delivery that still have
// undelivered rolls.
func Overdue(orders []domain.Order, now time.Time) []domain.Order {
	out := make([]domain.Order, 0)
	for i := range orders {
		if orders[i].Overdue(now) {
			out = append(out, orders[i])
		}
	}
	return out
}

// ComputeStats builds the dashboard statistics object.
func ComputeStats(orders []domain.Order, now time.Time) *domain.Stats {
	st := &domain.Stats{
		TotalOrders: len(orders),
		LastUpdated: now,
	}
	for i := range orders {
		if orders[i].HasStatus(domain.StatusPending) {
			st.PendingOrders++
		}
		if orders[i].Completed() {
			st.CompletedOrders++
		}
	}
	return st
}

// ComputeAnalytics groups orders created at or after since by calendar day.
// The series is sparse: days without orders produce no point.
func ComputeAnalytics(orders []domain.Order, since time.Time) []domain.AnalyticsPoint {
	type bucket struct {
		orders int
		rolls  int
	}
	buckets := make(map[string]bucket)
	for i := range orders {
		if orders[i].CreatedAt.Before(since) {
			continue
		}
		day := orders[i].CreatedAt.UTC().Format("2006-01-02")
		b := buckets[day]
		b.orders++
		b.rolls += len(orders[i].Rolls)
		buckets[day] = b
	}

	out := make([]domain.AnalyticsPoint, 0, len(buckets))
	for day, b := range buckets {
		out = append(out, domain.AnalyticsPoint{
			Date:       day,
			OrderCount: b.orders,
			RollCount:  b.rolls,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
