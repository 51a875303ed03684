// Package usage reports generation token spend against the configured budget.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts "day" and "month"; empty means day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", domain.ErrInvalidRequest, s)
	}
}

// Report is token usage for one period. Limit 0 and Remaining -1 mean
// unlimited. Timestamps are unix millis.
type Report struct {
	Period      Period
	PeriodStart int64
	PeriodEnd   int64
	TokensUsed  int64
	TokensLimit int64
	Remaining   int64
	Exhausted   bool
}

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode, nothing tracked).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds a usage report for the current day or month (UTC).
func (s *Service) GetReport(_ context.Context, period Period) Report {
	now := s.now().UTC()
	r := Report{Period: period, Remaining: -1}

	var start, end time.Time
	switch period {
	case PeriodMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		if s.br != nil {
			r.TokensLimit = s.br.MonthlyLimit()
			r.TokensUsed = s.br.MonthlyUsed()
			r.Remaining = s.br.RemainingMonthly()
		}
	default:
		r.Period = PeriodDay
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
		if s.br != nil {
			r.TokensLimit = s.br.DailyLimit()
			r.TokensUsed = s.br.DailyUsed()
			r.Remaining = s.br.RemainingDaily()
		}
	}
	r.PeriodStart = start.UnixMilli()
	r.PeriodEnd = end.UnixMilli()
	r.Exhausted = r.TokensLimit > 0 && r.Remaining == 0
	return r
}
