// Package cost enforces daily spend and call-count envelopes for outbound
// providers and the model classifier. Counters reset at the calendar-day
// boundary in the process timezone, detected lazily on read.
package cost

import (
	"log/slog"
	"sync"
	"time"
)

// Budget tracks one provider's daily USD spend and call count.
type Budget struct {
	mu          sync.Mutex
	name        string
	dailyUSDCap float64
	dailyCalls  int // 0 means unlimited
	spentUSD    float64
	calls       int
	day         string // YYYY-MM-DD in process tz
	now         func() time.Time
}

// NewBudget creates a budget. dailyCallCap of 0 disables the call limit.
func NewBudget(name string, dailyUSDCap float64, dailyCallCap int) *Budget {
	return &Budget{
		name:        name,
		dailyUSDCap: dailyUSDCap,
		dailyCalls:  dailyCallCap,
		now:         time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (b *Budget) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// rollover must be called with the lock held.
func (b *Budget) rollover() {
	today := b.now().Format("2006-01-02")
	if b.day != today {
		if b.day != "" {
			slog.Debug("cost budget reset", "budget", b.name, "previous_day", b.day, "spent_usd", b.spentUSD, "calls", b.calls)
		}
		b.day = today
		b.spentUSD = 0
		b.calls = 0
	}
}

// Allow reports whether one more call costing estUSD fits the envelope.
// It does not record the spend; call Record once the call is actually made.
func (b *Budget) Allow(estUSD float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	if b.dailyUSDCap > 0 && b.spentUSD+estUSD > b.dailyUSDCap {
		return false
	}
	if b.dailyCalls > 0 && b.calls+1 > b.dailyCalls {
		return false
	}
	return true
}

// Record accounts one completed call at the given cost.
func (b *Budget) Record(usd float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	b.spentUSD += usd
	b.calls++
}

// Report is a point-in-time budget snapshot for diagnostics.
type Report struct {
	Name        string  `json:"name"`
	Day         string  `json:"day"`
	SpentUSD    float64 `json:"spentUSD"`
	DailyUSDCap float64 `json:"dailyUSDCap"`
	Calls       int     `json:"calls"`
	DailyCalls  int     `json:"dailyCallCap,omitempty"`
}

// Snapshot returns the current counters.
func (b *Budget) Snapshot() Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return Report{
		Name:        b.name,
		Day:         b.day,
		SpentUSD:    b.spentUSD,
		DailyUSDCap: b.dailyUSDCap,
		Calls:       b.calls,
		DailyCalls:  b.dailyCalls,
	}
}
