package budget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

func newTracker(daily, monthly int64, action Action) *Tracker {
	return NewTracker(Config{
		Provider:     "groq",
		DailyLimit:   daily,
		MonthlyLimit: monthly,
		Action:       action,
		KeyPrefix:    "lookbook:",
	}, zap.NewNop())
}

func TestTracker_RejectWhenExceeded(t *testing.T) {
	bt := newTracker(100, 0, ActionReject)
	bt.Record(100)

	err := bt.Check(context.Background())
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestTracker_WarnWhenExceeded(t *testing.T) {
	bt := newTracker(100, 0, ActionWarn)
	bt.Record(200)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for warn action, got %v", err)
	}
}

func TestTracker_DefaultActionIsWarn(t *testing.T) {
	bt := newTracker(10, 0, "")
	bt.Record(20)
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected warn by default, got %v", err)
	}
}

func TestTracker_MonthlyReject(t *testing.T) {
	bt := newTracker(0, 500, ActionReject)
	bt.Record(500)

	err := bt.Check(context.Background())
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded for monthly limit, got %v", err)
	}
}

func TestTracker_UnlimitedWhenZero(t *testing.T) {
	bt := newTracker(0, 0, ActionReject)
	bt.Record(999999999)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for unlimited budget, got %v", err)
	}
	if bt.RemainingDaily() != -1 || bt.RemainingMonthly() != -1 {
		t.Errorf("expected -1 remaining, got %d / %d", bt.RemainingDaily(), bt.RemainingMonthly())
	}
}

func TestTracker_Remaining(t *testing.T) {
	bt := newTracker(1000, 10000, ActionWarn)
	bt.Record(300)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("expected daily remaining 700, got %d", got)
	}
	if got := bt.RemainingMonthly(); got != 9700 {
		t.Errorf("expected monthly remaining 9700, got %d", got)
	}

	bt.Record(5000)
	if got := bt.RemainingDaily(); got != 0 {
		t.Errorf("overspent daily remaining must clamp to 0, got %d", got)
	}
}

func TestTracker_RecordIgnoresNonPositive(t *testing.T) {
	bt := newTracker(100, 0, ActionReject)
	bt.Record(0)
	bt.Record(-5)
	if bt.DailyUsed() != 0 {
		t.Errorf("expected 0 used, got %d", bt.DailyUsed())
	}
}

func TestTracker_DayRollover(t *testing.T) {
	bt := newTracker(100, 1000, ActionReject)
	day := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	bt.now = func() time.Time { return day }
	bt.lastDayReset = truncateToDay(day)
	bt.lastMonthReset = truncateToMonth(day)

	bt.Record(100)
	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected rejection before rollover")
	}

	day = day.Add(2 * time.Hour)
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected daily reset after midnight, got %v", err)
	}
	if bt.MonthlyUsed() != 100 {
		t.Errorf("monthly counter must survive a day rollover, got %d", bt.MonthlyUsed())
	}
}

// --- Mock Store ---

type mockStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	setErr error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]int64)}
}

func (m *mockStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] += val
	return nil
}

func (m *mockStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func TestTracker_WithStore_LoadsValues(t *testing.T) {
	store := newMockStore()
	bt := newTracker(1000, 10000, ActionReject)
	now := bt.now().UTC()
	store.data[bt.dailyKey(now)] = 300
	store.data[bt.monthlyKey(now)] = 5000

	bt.WithStore(context.Background(), store)

	if bt.DailyUsed() != 300 {
		t.Errorf("expected daily_used=300, got %d", bt.DailyUsed())
	}
	if bt.MonthlyUsed() != 5000 {
		t.Errorf("expected monthly_used=5000, got %d", bt.MonthlyUsed())
	}
}

func TestTracker_Record_PersistsToStore(t *testing.T) {
	store := newMockStore()
	bt := newTracker(10000, 100000, ActionWarn)
	bt.WithStore(context.Background(), store)

	bt.Record(100)
	bt.Record(200)

	now := bt.now().UTC()
	dailyKey := bt.dailyKey(now)
	if dailyKey != "lookbook:budget:groq:daily:"+now.Format("2006-01-02") {
		t.Errorf("unexpected daily key %q", dailyKey)
	}
	store.mu.Lock()
	daily, monthly := store.data[dailyKey], store.data[bt.monthlyKey(now)]
	store.mu.Unlock()
	if daily != 300 || monthly != 300 {
		t.Errorf("store = daily %d monthly %d, want 300/300", daily, monthly)
	}
}

func TestTracker_WithStore_LoadError(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection refused")

	bt := newTracker(1000, 10000, ActionReject)
	bt.WithStore(context.Background(), store)

	if bt.DailyUsed() != 0 || bt.MonthlyUsed() != 0 {
		t.Errorf("expected zero counters on load error, got %d / %d", bt.DailyUsed(), bt.MonthlyUsed())
	}
}

func TestTracker_Record_StoreWriteError(t *testing.T) {
	store := newMockStore()
	bt := newTracker(1000, 10000, ActionWarn)
	bt.WithStore(context.Background(), store)

	store.mu.Lock()
	store.setErr = errors.New("write timeout")
	store.mu.Unlock()

	bt.Record(50)
	if bt.DailyUsed() != 50 {
		t.Errorf("expected daily_used=50 even with store error, got %d", bt.DailyUsed())
	}
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	bt := newTracker(0, 0, ActionWarn)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bt.Record(2)
		}()
	}
	wg.Wait()
	if bt.DailyUsed() != 100 {
		t.Errorf("expected 100, got %d", bt.DailyUsed())
	}
}
