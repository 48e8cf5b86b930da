// Package ledger keeps the local engagement ledger: daily streaks, action
// totals, score, level and the daily challenge.
//
// Every operation first applies the day rollover, which is idempotent: any
// number of calls on the same calendar day leaves the streak where the
// first one put it. The current streak never exceeds the best streak, the
// best streak never decreases and action totals only grow.
package ledger

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/storage"
)

// Action is a user action counted by the ledger.
type Action string

// Counted actions, plus the Session pseudo-action that only applies the
// day rollover.
const (
	ActionDownload Action = "download"
	ActionShare    Action = "share"
	ActionSave     Action = "save"
	ActionEdit     Action = "edit"
	ActionSession  Action = "session"
)

// Actions lists the counted actions.
var Actions = []Action{ActionDownload, ActionShare, ActionSave, ActionEdit}

// Weights are the score points per action.
var Weights = map[Action]int{
	ActionDownload: 3,
	ActionShare:    5,
	ActionSave:     4,
	ActionEdit:     1,
}

const (
	// PointsPerLevel is the score span of one level.
	PointsPerLevel = 30
	// DailyGoal is the number of actions that completes the daily challenge.
	DailyGoal = 6
)

// DayLayout is the calendar day format stored in the ledger.
const DayLayout = "2006-01-02"

// State is the persisted ledger.
type State struct {
	LastActiveDay    string         `json:"lastActiveDay,omitempty"`
	CurrentStreak    int            `json:"currentStreak"`
	BestStreak       int            `json:"bestStreak"`
	TotalActiveDays  int            `json:"totalActiveDays"`
	Today            string         `json:"today,omitempty"`
	TodayActionCount int            `json:"todayActionCount"`
	ActionTotals     map[Action]int `json:"actionTotals"`
}

// Snapshot is the state plus the values derived from it.
type Snapshot struct {
	State
	TotalScore         int  `json:"totalScore"`
	Level              int  `json:"level"`
	NextLevelThreshold int  `json:"nextLevelThreshold"`
	ChallengeProgress  int  `json:"challengeProgress"`
	ChallengeGoal      int  `json:"challengeGoal"`
	ChallengeComplete  bool `json:"challengeComplete"`
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the time zone that decides calendar days. The default
// is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

// Ledger records actions into a storage.Store under storage.KeyLedger.
// It is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	store storage.Store
	now   func() time.Time
	loc   *time.Location
}

// New returns a ledger persisted in store.
func New(store storage.Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now, loc: time.Local}
	for _, o := range opts {
		o(l)
	}
	return l
}

// RecordAction applies the rollover, counts one action of kind and saves
// the ledger. ActionSession only applies the rollover.
func (l *Ledger) RecordAction(ctx context.Context, kind Action) (Snapshot, error) {
	if kind == ActionSession {
		return l.RecordSession(ctx)
	}
	if _, ok := Weights[kind]; !ok {
		return Snapshot{}, fmt.Errorf("ledger: unknown action %q: %w", kind, ggmeme.ErrValidation)
	}
	return l.update(ctx, func(s *State) bool {
		s.ActionTotals[kind]++
		s.TodayActionCount++
		return true
	})
}

// RecordSession applies the rollover without counting an action.
func (l *Ledger) RecordSession(ctx context.Context) (Snapshot, error) {
	return l.update(ctx, nil)
}

// ReadSnapshot applies the rollover and returns the derived snapshot.
func (l *Ledger) ReadSnapshot(ctx context.Context) (Snapshot, error) {
	return l.update(ctx, nil)
}

func (l *Ledger) update(ctx context.Context, mutate func(*State) bool) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s State
	if _, err := storage.GetJSON(ctx, l.store, storage.KeyLedger, &s); err != nil {
		return Snapshot{}, err
	}
	before := clone(s)
	s = Rollover(s, l.now().In(l.loc).Format(DayLayout))
	changed := !equal(before, s)
	if mutate != nil && mutate(&s) {
		changed = true
	}
	if changed {
		if err := storage.PutJSON(ctx, l.store, storage.KeyLedger, s); err != nil {
			return Snapshot{}, err
		}
		ggmeme.Logger().Debug("ledger: saved", "day", s.LastActiveDay, "streak", s.CurrentStreak, "today", s.TodayActionCount)
	}
	return Derive(s), nil
}

// Rollover brings s forward to today (formatted with DayLayout). It is a
// pure function and idempotent for a fixed today.
func Rollover(s State, today string) State {
	s = clone(s)
	switch {
	case s.LastActiveDay == "":
		s.CurrentStreak, s.BestStreak, s.TotalActiveDays = 1, 1, 1
		s.LastActiveDay = today
		s.Today, s.TodayActionCount = today, 0
	case s.LastActiveDay == today:
		if s.Today != today {
			s.Today, s.TodayActionCount = today, 0
		}
	default:
		if d, ok := DayDiff(s.LastActiveDay, today); ok && d == 1 {
			s.CurrentStreak++
		} else {
			s.CurrentStreak = 1
		}
		s.BestStreak = max(s.BestStreak, s.CurrentStreak)
		s.TotalActiveDays++
		s.LastActiveDay = today
		s.Today, s.TodayActionCount = today, 0
	}
	return s
}

// DayDiff returns the number of calendar days from a to b. ok is false when
// either day does not parse.
func DayDiff(a, b string) (days int, ok bool) {
	ta, err := time.Parse(DayLayout, a)
	if err != nil {
		return 0, false
	}
	tb, err := time.Parse(DayLayout, b)
	if err != nil {
		return 0, false
	}
	return int(tb.Sub(ta).Hours() / 24), true
}

// Derive computes score, level and challenge progress from s.
func Derive(s State) Snapshot {
	snap := Snapshot{State: clone(s), ChallengeGoal: DailyGoal}
	for _, a := range Actions {
		snap.TotalScore += s.ActionTotals[a] * Weights[a]
	}
	snap.Level = snap.TotalScore/PointsPerLevel + 1
	snap.NextLevelThreshold = snap.Level * PointsPerLevel
	snap.ChallengeProgress = min(s.TodayActionCount, DailyGoal)
	snap.ChallengeComplete = snap.ChallengeProgress >= DailyGoal
	return snap
}

func clone(s State) State {
	totals := make(map[Action]int, len(Actions))
	for _, a := range Actions {
		totals[a] = 0
	}
	maps.Copy(totals, s.ActionTotals)
	s.ActionTotals = totals
	return s
}

func equal(a, b State) bool {
	return a.LastActiveDay == b.LastActiveDay &&
		a.CurrentStreak == b.CurrentStreak &&
		a.BestStreak == b.BestStreak &&
		a.TotalActiveDays == b.TotalActiveDays &&
		a.Today == b.Today &&
		a.TodayActionCount == b.TodayActionCount &&
		maps.Equal(a.ActionTotals, b.ActionTotals)
}
