package model

import (
	"fmt"
	"strings"
	"time"
)

// Window is a trailing range used for statistics.
type Window string

const (
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

func ParseWindow(s string) (Window, error) {
	switch Window(strings.ToLower(strings.TrimSpace(s))) {
	case WindowWeek:
		return WindowWeek, nil
	case WindowMonth:
		return WindowMonth, nil
	default:
		return "", fmt.Errorf("unknown window %q", s)
	}
}

// Duration is the rolling length of the window.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowMonth:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// DayStat is one rendered row of the history view.
type DayStat struct {
	Date    string `json:"date"`
	Peak    int    `json:"peak"`
	Restock bool   `json:"restock"`
}

// StockSnapshot is a live reading for the current-stock view.
type StockSnapshot struct {
	Product   TrackedProduct `json:"product"`
	Quantity  int            `json:"quantity"`
	CheckedAt time.Time      `json:"checked_at"`
}
