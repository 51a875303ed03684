package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// --- Mock ---

type mockBudgetReader struct {
	dailyLimit       int64
	monthlyLimit     int64
	dailyUsed        int64
	monthlyUsed      int64
	remainingDaily   int64
	remainingMonthly int64
}

func (m *mockBudgetReader) DailyLimit() int64       { return m.dailyLimit }
func (m *mockBudgetReader) MonthlyLimit() int64     { return m.monthlyLimit }
func (m *mockBudgetReader) DailyUsed() int64        { return m.dailyUsed }
func (m *mockBudgetReader) MonthlyUsed() int64      { return m.monthlyUsed }
func (m *mockBudgetReader) RemainingDaily() int64   { return m.remainingDaily }
func (m *mockBudgetReader) RemainingMonthly() int64 { return m.remainingMonthly }

var fixedNow = time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

func newFixed(br BudgetReader) *Service {
	s := New(br)
	s.now = func() time.Time { return fixedNow }
	return s
}

// --- Tests ---

func TestGetReport_DailyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		dailyLimit: 10000, dailyUsed: 3000, remainingDaily: 7000,
		monthlyLimit: 100000, monthlyUsed: 50000, remainingMonthly: 50000,
	}
	r := newFixed(br).GetReport(context.Background(), PeriodDay)

	if r.Period != PeriodDay {
		t.Errorf("expected period %q, got %q", PeriodDay, r.Period)
	}
	dayStart := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart != dayStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", dayStart.UnixMilli(), r.PeriodStart)
	}
	if r.PeriodEnd != dayStart.Add(24*time.Hour).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd)
	}
	if r.TokensLimit != 10000 || r.TokensUsed != 3000 || r.Remaining != 7000 {
		t.Errorf("unexpected report %+v", r)
	}
	if r.Exhausted {
		t.Error("expected not exhausted")
	}
}

func TestGetReport_MonthlyPeriod(t *testing.T) {
	br := &mockBudgetReader{monthlyLimit: 100000, monthlyUsed: 100000, remainingMonthly: 0}
	r := newFixed(br).GetReport(context.Background(), PeriodMonth)

	monthStart := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart != monthStart.UnixMilli() {
		t.Errorf("expected month start %d, got %d", monthStart.UnixMilli(), r.PeriodStart)
	}
	if r.PeriodEnd != time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd)
	}
	if !r.Exhausted {
		t.Error("expected exhausted when remaining is 0")
	}
}

func TestGetReport_Unlimited(t *testing.T) {
	br := &mockBudgetReader{dailyUsed: 500, remainingDaily: -1}
	r := newFixed(br).GetReport(context.Background(), PeriodDay)
	if r.TokensLimit != 0 || r.Remaining != -1 || r.Exhausted {
		t.Errorf("unexpected report for unlimited budget: %+v", r)
	}
	if r.TokensUsed != 500 {
		t.Errorf("expected used 500, got %d", r.TokensUsed)
	}
}

func TestGetReport_NilReader(t *testing.T) {
	r := newFixed(nil).GetReport(context.Background(), PeriodMonth)
	if r.TokensUsed != 0 || r.TokensLimit != 0 || r.Remaining != -1 || r.Exhausted {
		t.Errorf("unexpected report without budget: %+v", r)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{in: "", want: PeriodDay},
		{in: "day", want: PeriodDay},
		{in: "month", want: PeriodMonth},
		{in: "year", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidRequest) {
					t.Fatalf("expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %q, %v", got, err)
			}
		})
	}
}
