package contest

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/alex65536/daybot/internal/util/clone"
	"github.com/alex65536/go-chess/util/maybe"
	"github.com/goccy/go-json"
)

var ErrMalformedSchedule = errors.New("malformed schedule")

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

type ContestDay struct {
	Day     uint8    `json:"day"`
	Species uint8    `json:"species"`
	Version string   `json:"version"`
	Hints   []string `json:"hints"`
}

func (d ContestDay) Clone() ContestDay {
	d.Hints = slices.Clone(d.Hints)
	return d
}

// Schedule keeps the days in upload order. Day values are expected to be unique, but this is not
// enforced: lookups return the first matching entry.
type Schedule struct {
	days []ContestDay
}

func NewSchedule(days []ContestDay) Schedule {
	return Schedule{days: clone.DeepSlice(days)}
}

func ParseSchedule(raw []byte) (Schedule, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	var days []ContestDay
	if err := json.Unmarshal(raw, &days); err != nil {
		return Schedule{}, fmt.Errorf("%w: %w", ErrMalformedSchedule, err)
	}
	if days == nil {
		return Schedule{}, fmt.Errorf("%w: expected array, got null", ErrMalformedSchedule)
	}
	for i := range days {
		if days[i].Hints == nil {
			days[i].Hints = []string{}
		}
	}
	return Schedule{days: days}, nil
}

func (s Schedule) Len() int { return len(s.days) }

func (s Schedule) Days() []ContestDay {
	return clone.DeepSlice(s.days)
}

func (s Schedule) Day(day int) (ContestDay, bool) {
	for _, d := range s.days {
		if int(d.Day) == day {
			return d.Clone(), true
		}
	}
	return ContestDay{}, false
}

// LastDay returns the largest day number present in the schedule.
func (s Schedule) LastDay() (int, bool) {
	if len(s.days) == 0 {
		return 0, false
	}
	last := 0
	for _, d := range s.days {
		last = max(last, int(d.Day))
	}
	return last, true
}

func (s Schedule) DuplicateDays() []int {
	seen := make(map[uint8]int, len(s.days))
	var dups []int
	for _, d := range s.days {
		seen[d.Day]++
		if seen[d.Day] == 2 {
			dups = append(dups, int(d.Day))
		}
	}
	slices.Sort(dups)
	return dups
}

type Contest struct {
	ID         string
	Name       string
	StartedBy  string
	CurrentDay maybe.Maybe[int]
	Schedule   Schedule
}

func (c *Contest) Info() ContestInfo {
	info := ContestInfo{
		ID:        c.ID,
		Name:      c.Name,
		StartedBy: c.StartedBy,
		Loaded:    c.CurrentDay.IsSome(),
		Days:      c.Schedule.Len(),
	}
	if c.CurrentDay.IsSome() {
		info.CurrentDay = c.CurrentDay.Get()
	}
	return info
}

// ContestInfo is a detached summary of a contest, safe to use outside the store lock.
type ContestInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	StartedBy  string `json:"started_by"`
	Loaded     bool   `json:"loaded"`
	CurrentDay int    `json:"current_day"`
	Days       int    `json:"days"`
}
