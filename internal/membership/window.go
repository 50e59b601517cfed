package membership

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusExpiringSoon Status = "expiring_soon"
	StatusExpired      Status = "expired"
)

// ExpiringSoonDays caps how early a window starts reporting ExpiringSoon.
const ExpiringSoonDays = 30

const day = 24 * time.Hour

// Window is the derived state of a subscription at a given instant.
type Window struct {
	TotalDays          int     `json:"total_days"`
	DaysElapsed        int     `json:"days_elapsed"`
	DaysRemaining      int     `json:"days_remaining"`
	ProgressPercentage float64 `json:"progress_percentage"`
	Status             Status  `json:"status"`
}

// Classify derives the window state of [start, end] at now. Days are whole
// days; partial days are dropped.
func Classify(start, end, now time.Time) Window {
	total := wholeDays(end.Sub(start))
	if total <= 0 {
		return Window{ProgressPercentage: 100, Status: StatusExpired}
	}

	elapsed := wholeDays(now.Sub(start))
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > total {
		elapsed = total
	}
	remaining := total - elapsed

	progress := decimal.NewFromInt(int64(elapsed)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)

	return Window{
		TotalDays:          total,
		DaysElapsed:        elapsed,
		DaysRemaining:      remaining,
		ProgressPercentage: progress.InexactFloat64(),
		Status:             statusFor(total, remaining),
	}
}

// expiringSoonThreshold is a quarter of the window, at least one day and at
// most ExpiringSoonDays. Windows of 120 days or more get the flat 30-day
// cutoff; shorter plans scale down so a 30-day plan with 15 days left is
// still active, and a 60-day plan turns at 15 days.
func expiringSoonThreshold(totalDays int) int {
	t := totalDays / 4
	if t < 1 {
		t = 1
	}
	if t > ExpiringSoonDays {
		t = ExpiringSoonDays
	}
	return t
}

func statusFor(totalDays, remaining int) Status {
	switch {
	case remaining <= 0:
		return StatusExpired
	case remaining <= expiringSoonThreshold(totalDays):
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}

func wholeDays(d time.Duration) int {
	n := int(d / day)
	// Duration division truncates toward zero; floor negative spans.
	if d < 0 && d%day != 0 {
		n--
	}
	return n
}

// WindowFor classifies s at now.
func (s *Subscription) WindowFor(now time.Time) Window {
	return Classify(s.PlanStartDate, s.PlanEndDate, now)
}
