package types

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an alert
type Status string

const (
	StatusActive      Status = "active"
	StatusTriggered   Status = "triggered" // part of the stored schema, never written by the checker
	StatusDeactivated Status = "deactivated"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusTriggered, StatusDeactivated:
		return true
	}
	return false
}

type Alert struct {
	ID          int64     `json:"id" db:"id"`
	ChatID      int64     `json:"chat_id" db:"chat_id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	TargetPrice float64   `json:"target_price" db:"target_price"`
	Status      Status    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NormalizedSymbol is the key used when comparing an alert against price data
func (a Alert) NormalizedSymbol() string {
	return NormalizeSymbol(a.Symbol)
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
