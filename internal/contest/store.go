package contest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alex65536/daybot/internal/util/idgen"
	"github.com/alex65536/daybot/internal/util/slogx"
	"github.com/alex65536/go-chess/util/maybe"
	petname "github.com/dustinkirkland/golang-petname"
)

var ErrNotAwaitingData = errors.New("not awaiting contest data")

type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeBroadcast
	OutcomeSkip
	OutcomeEnded
	OutcomeStopped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeBroadcast:
		return "broadcast"
	case OutcomeSkip:
		return "skip"
	case OutcomeEnded:
		return "ended"
	case OutcomeStopped:
		return "stopped"
	default:
		return "?"
	}
}

type AdvanceOutcome struct {
	Kind OutcomeKind
	// Day is the day counter after advancing. Zero for OutcomeStopped.
	Day int
	// Content is set only for OutcomeBroadcast.
	Content ContestDay
}

// ScheduleLoaded tells the caller to spawn a day scheduler for the contest. Ctx is cancelled as
// soon as the contest is stopped, ended, abandoned or reloaded.
type ScheduleLoaded struct {
	ContestID string
	Days      int
	Ctx       context.Context
}

type Status struct {
	Active       bool        `json:"active"`
	AwaitingData bool        `json:"awaiting_data"`
	Contest      ContestInfo `json:"contest"`
}

// Store owns the single contest slot. Every method is atomic on its own, but sequences of calls
// are not: the state may change between two calls made by the same caller.
//
// Lock order: mu, then awaitMu.
type Store struct {
	log  *slog.Logger
	gctx context.Context
	stop func()

	mu      sync.Mutex
	contest *Contest
	cancel  context.CancelFunc

	awaitMu  sync.Mutex
	awaiting bool
}

func NewStore(log *slog.Logger) *Store {
	gctx, stop := context.WithCancel(context.Background())
	return &Store{
		log:  log,
		gctx: gctx,
		stop: stop,
	}
}

func (s *Store) setAwaiting(v bool) {
	s.awaitMu.Lock()
	defer s.awaitMu.Unlock()
	s.awaiting = v
}

func (s *Store) isAwaiting() bool {
	s.awaitMu.Lock()
	defer s.awaitMu.Unlock()
	return s.awaiting
}

func (s *Store) contestLog(c *Contest) *slog.Logger {
	return s.log.With(slog.String("contest_id", c.ID), slog.String("contest_name", c.Name))
}

func (s *Store) resetUnlocked(reason string) bool {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.setAwaiting(false)
	if s.contest == nil {
		return false
	}
	s.contestLog(s.contest).Info("contest cleared", slog.String("reason", reason))
	s.contest = nil
	return true
}

// StartContest creates a contest awaiting its schedule. If a contest already exists, nothing
// changes and false is returned along with the existing contest.
func (s *Store) StartContest(actor string) (ContestInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contest != nil {
		return s.contest.Info(), false
	}
	c := &Contest{
		ID:         idgen.ID(),
		Name:       petname.Generate(2, "-"),
		StartedBy:  actor,
		CurrentDay: maybe.None[int](),
		Schedule:   NewSchedule(nil),
	}
	s.contest = c
	s.setAwaiting(true)
	s.contestLog(c).Info("contest started", slog.String("actor", actor))
	return c.Info(), true
}

// StopContest drops the contest, if any, and cancels its day scheduler. It reports whether
// there was a contest to stop.
func (s *Store) StopContest(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetUnlocked(reason)
}

// Abandon drops the contest awaiting its schedule if the schedule could not be obtained. Nothing
// happens if contestID is no longer the current contest.
func (s *Store) Abandon(contestID string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contest == nil || s.contest.ID != contestID {
		return
	}
	_ = s.resetUnlocked(reason)
}

// AwaitingContest returns the id of the contest awaiting its schedule, if any.
func (s *Store) AwaitingContest() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contest == nil || !s.isAwaiting() {
		return "", false
	}
	return s.contest.ID, true
}

// LoadSchedule installs the uploaded schedule into the contest contestID, which must be awaiting
// it. A malformed schedule destroys the contest, so the operator has to start over.
func (s *Store) LoadSchedule(contestID string, raw []byte) (ScheduleLoaded, error) {
	sched, parseErr := ParseSchedule(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contest == nil || s.contest.ID != contestID || !s.isAwaiting() {
		return ScheduleLoaded{}, ErrNotAwaitingData
	}
	c := s.contest
	log := s.contestLog(c)
	if parseErr != nil {
		log.Info("could not parse schedule", slogx.Err(parseErr))
		_ = s.resetUnlocked("malformed schedule")
		return ScheduleLoaded{}, fmt.Errorf("parse schedule: %w", parseErr)
	}
	if dups := sched.DuplicateDays(); len(dups) != 0 {
		log.Warn("schedule has duplicate days, first entry wins", slog.Any("days", dups))
	}

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.gctx)
	s.cancel = cancel
	c.Schedule = sched
	c.CurrentDay = maybe.Some(0)
	s.setAwaiting(false)

	log.Info("schedule loaded", slog.Int("days", sched.Len()))
	return ScheduleLoaded{
		ContestID: c.ID,
		Days:      sched.Len(),
		Ctx:       ctx,
	}, nil
}

// AdvanceDay moves the contest identified by contestID to the next day. Any other contest, or no
// contest at all, yields OutcomeStopped.
func (s *Store) AdvanceDay(contestID string) AdvanceOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.contest
	if c == nil || c.ID != contestID || c.CurrentDay.IsNone() {
		return AdvanceOutcome{Kind: OutcomeStopped}
	}

	day := c.CurrentDay.Get() + 1
	c.CurrentDay = maybe.Some(day)
	if content, ok := c.Schedule.Day(day); ok {
		return AdvanceOutcome{Kind: OutcomeBroadcast, Day: day, Content: content}
	}
	// An empty schedule has no last day; treat it as ending before day 1.
	last, _ := c.Schedule.LastDay()
	if day > last {
		_ = s.resetUnlocked("schedule exhausted")
		return AdvanceOutcome{Kind: OutcomeEnded, Day: day}
	}
	return AdvanceOutcome{Kind: OutcomeSkip, Day: day}
}

func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contest == nil {
		return Status{}
	}
	return Status{
		Active:       true,
		AwaitingData: s.isAwaiting(),
		Contest:      s.contest.Info(),
	}
}

// Close cancels every scheduler handle ever issued by the store.
func (s *Store) Close() {
	s.stop()
}
