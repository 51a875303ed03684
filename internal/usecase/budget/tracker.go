// Package budget caps generation token spend per day and per month.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but lets the call through.
	ActionWarn Action = "warn"
	// ActionReject refuses the call with domain.ErrBudgetExceeded.
	ActionReject Action = "reject"
)

// Store persists budget counters. IncrBy may be called repeatedly.
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Config sets the limits. Zero limits mean unlimited.
type Config struct {
	Provider     string
	DailyLimit   int64
	MonthlyLimit int64
	Action       Action
	KeyPrefix    string // e.g. "lookbook:"
}

// Tracker is an in-memory token budget with optional write-behind
// persistence. Check never leaves the process.
type Tracker struct {
	mu             sync.Mutex
	cfg            Config
	dailyUsed      int64
	monthlyUsed    int64
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          Store
	logger         *zap.Logger
	now            func() time.Time
}

// NewTracker creates a tracker. An empty Action selects ActionWarn.
func NewTracker(cfg Config, logger *zap.Logger) *Tracker {
	if cfg.Action == "" {
		cfg.Action = ActionWarn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{cfg: cfg, logger: logger, now: time.Now}
	now := t.now().UTC()
	t.lastDayReset = truncateToDay(now)
	t.lastMonthReset = truncateToMonth(now)
	return t
}

// WithStore attaches persistence and seeds the counters from it. A failed
// read leaves the counter at zero.
func (t *Tracker) WithStore(ctx context.Context, store Store) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store = store

	now := t.now().UTC()
	if v, err := store.Get(ctx, t.dailyKey(now)); err != nil {
		t.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	} else {
		t.dailyUsed = v
	}
	if v, err := store.Get(ctx, t.monthlyKey(now)); err != nil {
		t.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	} else {
		t.monthlyUsed = v
	}
	t.logger.Info("Budget loaded from store",
		zap.String("provider", t.cfg.Provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("monthly_used", t.monthlyUsed),
	)
	return t
}

func (t *Tracker) dailyKey(at time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", t.cfg.KeyPrefix, t.cfg.Provider, at.Format("2006-01-02"))
}

func (t *Tracker) monthlyKey(at time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", t.cfg.KeyPrefix, t.cfg.Provider, at.Format("2006-01"))
}

// Check reports whether a new call may run.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()

	daily := t.cfg.DailyLimit > 0 && t.dailyUsed >= t.cfg.DailyLimit
	monthly := t.cfg.MonthlyLimit > 0 && t.monthlyUsed >= t.cfg.MonthlyLimit
	if !daily && !monthly {
		return nil
	}

	if t.cfg.Action == ActionReject {
		period := "daily"
		if !daily {
			period = "monthly"
		}
		return fmt.Errorf("%w: %s limit reached", domain.ErrBudgetExceeded, period)
	}

	t.logger.Warn("Token budget exceeded",
		zap.String("provider", t.cfg.Provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.cfg.DailyLimit),
		zap.Int64("monthly_used", t.monthlyUsed),
		zap.Int64("monthly_limit", t.cfg.MonthlyLimit),
	)
	return nil
}

// Record adds consumed tokens, then persists them if a store is attached.
func (t *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}
	t.mu.Lock()
	t.resetIfNeeded()
	t.dailyUsed += tokens
	t.monthlyUsed += tokens
	store := t.store
	now := t.now().UTC()
	t.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request: a cancelled caller still spent the tokens.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.IncrBy(ctx, t.dailyKey(now), tokens); err != nil {
		t.logger.Warn("Failed to persist daily budget", zap.Error(err))
	}
	if err := store.IncrBy(ctx, t.monthlyKey(now), tokens); err != nil {
		t.logger.Warn("Failed to persist monthly budget", zap.Error(err))
	}
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (t *Tracker) RemainingDaily() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return remaining(t.cfg.DailyLimit, t.dailyUsed)
}

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (t *Tracker) RemainingMonthly() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return remaining(t.cfg.MonthlyLimit, t.monthlyUsed)
}

// DailyLimit returns the daily token cap.
func (t *Tracker) DailyLimit() int64 { return t.cfg.DailyLimit }

// MonthlyLimit returns the monthly token cap.
func (t *Tracker) MonthlyLimit() int64 { return t.cfg.MonthlyLimit }

// DailyUsed returns tokens consumed today.
func (t *Tracker) DailyUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.dailyUsed
}

// MonthlyUsed returns tokens consumed this month.
func (t *Tracker) MonthlyUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.monthlyUsed
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// resetIfNeeded zeroes counters when the day or month rolls over. Caller holds mu.
func (t *Tracker) resetIfNeeded() {
	now := t.now().UTC()
	if today := truncateToDay(now); today.After(t.lastDayReset) {
		t.dailyUsed = 0
		t.lastDayReset = today
	}
	if month := truncateToMonth(now); month.After(t.lastMonthReset) {
		t.monthlyUsed = 0
		t.lastMonthReset = month
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
