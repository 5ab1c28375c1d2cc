package domain

import (
	"fmt"
	"time"
)

// RollStatus is the closed set of states a roll moves through.
type RollStatus string

const (
	StatusPending    RollStatus = "pending"
	StatusProcessing RollStatus = "processing"
	StatusDispatched RollStatus = "dispatched"
)

func (s RollStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDispatched:
		return true
	}
	return false
}

// Roll is a line item embedded in an order. Rolls have no lifecycle of
// their own, they live and die with the owning order.
type Roll struct {
	RollNumber      string     `json:"rollNumber"`
	Grade           string     `json:"grade"`
	Hardness        string     `json:"hardness,omitempty"`
	Machining       string     `json:"machining,omitempty"`
	RollDescription string     `json:"rollDescription,omitempty"`
	Dimensions      string     `json:"dimensions,omitempty"`
	Status          RollStatus `json:"status"`
}

type Order struct {
	ID               string     `json:"_id"`
	CompanyName      string     `json:"companyName"`
	Broker           string     `json:"broker,omitempty"`
	OrderDate        time.Time  `json:"orderDate"`
	ExpectedDelivery *time.Time `json:"expectedDelivery,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	Rolls            []Roll     `json:"rolls"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Validate checks the write-time invariants. An order with zero rolls is
// valid; every roll that is present must carry a known status.
func (o *Order) Validate() error {
	if o.CompanyName == "" {
		return &ValidationError{Field: "companyName", Reason: "is required"}
	}
	for i, r := range o.Rolls {
		if r.Status == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("rolls[%d].status", i),
				Reason: "is required",
			}
		}
		if !r.Status.Valid() {
			return &ValidationError{
				Field:  fmt.Sprintf("rolls[%d].status", i),
				Reason: fmt.Sprintf("%q is not a valid status", r.Status),
			}
		}
	}
	return nil
}

// HasStatus reports whether any roll carries the given status.
func (o *Order) HasStatus(s RollStatus) bool {
	for _, r := range o.Rolls {
		if r.Status == s {
			return true
		}
	}
	return false
}

// Completed reports whether every roll has been dispatched. An order with
// zero rolls is never completed.
func (o *Order) Completed() bool {
	if len(o.Rolls) == 0 {
		return false
	}
	for _, r := range o.Rolls {
		if r.Status != StatusDispatched {
			return false
		}
	}
	return true
}

// Overdue reports whether the order is past its expected delivery with at
// least one roll still undelivered. Orders without an expected delivery date
// or without rolls are never overdue.
func (o *Order) Overdue(now time.Time) bool {
	if o.ExpectedDelivery == nil || !o.ExpectedDelivery.Before(now) {
		return false
	}
	return len(o.Rolls) > 0 && !o.Completed()
}

// Stats is the dashboard statistics object.
type Stats struct {
	TotalOrders     int       `json:"totalOrders"`
	PendingOrders   int       `json:"pendingOrders"`
	CompletedOrders int       `json:"completedOrders"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// AnalyticsPoint is one calendar day of the trailing-window series. Days
// with no orders are omitted from the series entirely.
type AnalyticsPoint struct {
	Date       string `json:"date"` // YYYY-MM-DD
	OrderCount int    `json:"orderCount"`
	RollCount  int    `json:"totalRollCount"`
}
