package contest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alex65536/daybot/internal/util/slogx"
)

type Broadcaster interface {
	SendText(ctx context.Context, channelID string, text string) error
	SendAnnouncement(ctx context.Context, channelID string, a Announcement) error
}

type SchedulerOptions struct {
	Interval    time.Duration `toml:"tick-interval"`
	SendTimeout time.Duration `toml:"send-timeout"`
	EmbedColor  string        `toml:"embed-color"`
	ChannelID   string        `toml:"channel"`
}

func (o *SchedulerOptions) FillDefaults() {
	if o.Interval == 0 {
		o.Interval = 30 * time.Second
	}
	if o.SendTimeout == 0 {
		o.SendTimeout = 10 * time.Second
	}
}

func (o *SchedulerOptions) Validate() error {
	if o.Interval < 0 {
		return fmt.Errorf("negative tick interval")
	}
	if o.SendTimeout < 0 {
		return fmt.Errorf("negative send timeout")
	}
	if o.ChannelID == "" {
		return fmt.Errorf("no broadcast channel")
	}
	if _, err := ParseColor(o.EmbedColor); err != nil {
		return fmt.Errorf("embed color: %w", err)
	}
	return nil
}

// DayScheduler runs one ticking goroutine per loaded contest. The goroutine lives until the
// contest ends or the store cancels its handle.
type DayScheduler struct {
	log   *slog.Logger
	store *Store
	out   Broadcaster
	o     SchedulerOptions
	color int

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDayScheduler(log *slog.Logger, store *Store, out Broadcaster, o SchedulerOptions) (*DayScheduler, error) {
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("bad options: %w", err)
	}
	o.FillDefaults()
	color, err := ParseColor(o.EmbedColor)
	if err != nil {
		panic("must not happen")
	}
	return &DayScheduler{
		log:   log.With(slog.String("channel_id", o.ChannelID)),
		store: store,
		out:   out,
		o:     o,
		color: color,
	}, nil
}

func (d *DayScheduler) Spawn(loaded ScheduleLoaded) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Warn("scheduler closed, not spawning", slog.String("contest_id", loaded.ContestID))
		return
	}
	d.wg.Add(1)
	go d.loop(loaded)
}

func (d *DayScheduler) loop(loaded ScheduleLoaded) {
	defer d.wg.Done()
	log := d.log.With(slog.String("contest_id", loaded.ContestID))
	log.Info("day scheduler started", slog.Duration("interval", d.o.Interval), slog.Int("days", loaded.Days))

	// The first day goes out right after the load, the next ones once per interval.
	if loaded.Ctx.Err() != nil || !d.tick(log, loaded.ContestID) {
		return
	}
	ticker := time.NewTicker(d.o.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-loaded.Ctx.Done():
			log.Info("day scheduler cancelled")
			return
		}
		if !d.tick(log, loaded.ContestID) {
			return
		}
	}
}

// tick advances the contest by one day and reports whether the scheduler must keep running.
func (d *DayScheduler) tick(log *slog.Logger, contestID string) bool {
	outcome := d.store.AdvanceDay(contestID)
	switch outcome.Kind {
	case OutcomeBroadcast:
		a := Render(outcome.Content)
		a.Color = d.color
		d.send(log, outcome.Day, func(ctx context.Context) error {
			return d.out.SendAnnouncement(ctx, d.o.ChannelID, a)
		})
		return true
	case OutcomeSkip:
		log.Debug("no entry for day", slog.Int("day", outcome.Day))
		return true
	case OutcomeEnded:
		d.send(log, outcome.Day, func(ctx context.Context) error {
			return d.out.SendText(ctx, d.o.ChannelID, EndedMessage)
		})
		log.Info("contest ended", slog.Int("day", outcome.Day))
		return false
	case OutcomeStopped:
		log.Info("contest gone, day scheduler exiting")
		return false
	default:
		panic("must not happen")
	}
}

func (d *DayScheduler) send(log *slog.Logger, day int, f func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.o.SendTimeout)
	defer cancel()
	if err := f(ctx); err != nil {
		log.Error("could not send message", slog.Int("day", day), slogx.Err(err))
	}
}

// Close waits for all the spawned goroutines. Cancel them first via Store.Close.
func (d *DayScheduler) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
