package models

import (
	"encoding/json"
	"sort"
	"time"
)

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	StatusUnknown   OrderStatus = "UNKNOWN"
	StatusOrdered   OrderStatus = "ORDERED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Rank returns the forward-progress rank of a status.
// ORDERED(0) < SHIPPED(1) < DELIVERED(2). CANCELLED is an absorbing
// state outside the rank order and UNKNOWN never ranks.
func (s OrderStatus) Rank() int {
	switch s {
	case StatusOrdered:
		return 0
	case StatusShipped:
		return 1
	case StatusDelivered:
		return 2
	}
	return -1
}

// Terminal reports whether no further status transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsValid checks if the status is a known lifecycle status
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusUnknown, StatusOrdered, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order is the persisted ledger entry for one retail order, aggregated
// from possibly many emails. Keyed by (account, retailer, order_number).
type Order struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AccountID       uint      `gorm:"uniqueIndex:idx_orders_key;not null" json:"account_id"`
	Retailer        string    `gorm:"uniqueIndex:idx_orders_key;size:50;not null" json:"retailer"`
	OrderNumber     string    `gorm:"uniqueIndex:idx_orders_key;size:50;not null" json:"order_number"`
	Status          string    `gorm:"size:20;not null;default:'ORDERED'" json:"status"`
	TrackingNumbers string    `gorm:"type:text" json:"tracking_numbers"` // JSON array stored as string
	ShipTo          string    `gorm:"size:500" json:"ship_to"`
	SentTo          string    `gorm:"size:255" json:"sent_to"`
	CancelReason    string    `gorm:"size:255" json:"cancel_reason,omitempty"`
	Hidden          bool      `gorm:"default:false" json:"hidden"`
	FirstSeenAt     time.Time `gorm:"index" json:"first_seen_at"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OrderStatusValue returns the typed status of the order
func (o *Order) OrderStatusValue() OrderStatus {
	return OrderStatus(o.Status)
}

// TrackingList decodes the stored tracking numbers. A corrupt or empty
// column yields an empty list.
func (o *Order) TrackingList() []string {
	if o.TrackingNumbers == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(o.TrackingNumbers), &list); err != nil {
		return nil
	}
	return list
}

// SetTrackingList stores tracking numbers deduplicated and sorted so the
// column is deterministic regardless of extraction order.
func (o *Order) SetTrackingList(numbers []string) {
	seen := make(map[string]bool, len(numbers))
	var list []string
	for _, n := range numbers {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		list = append(list, n)
	}
	sort.Strings(list)
	if len(list) == 0 {
		o.TrackingNumbers = ""
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	o.TrackingNumbers = string(data)
}

// UnionTracking merges new tracking numbers into the stored set.
// The set never shrinks. Returns true if anything was added.
func (o *Order) UnionTracking(numbers []string) bool {
	if len(numbers) == 0 {
		return false
	}
	current := o.TrackingList()
	have := make(map[string]bool, len(current))
	for _, n := range current {
		have[n] = true
	}
	added := false
	for _, n := range numbers {
		if n != "" && !have[n] {
			have[n] = true
			current = append(current, n)
			added = true
		}
	}
	if added {
		o.SetTrackingList(current)
	}
	return added
}
