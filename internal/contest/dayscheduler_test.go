package contest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alex65536/daybot/internal/util/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	channelID    string
	text         string
	announcement *Announcement
}

type fakeBroadcaster struct {
	ch   chan sent
	mu   sync.Mutex
	fail bool
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{ch: make(chan sent, 64)}
}

func (f *fakeBroadcaster) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *fakeBroadcaster) SendText(_ context.Context, channelID string, text string) error {
	f.ch <- sent{channelID: channelID, text: text}
	if f.failing() {
		return errors.New("send failed")
	}
	return nil
}

func (f *fakeBroadcaster) SendAnnouncement(_ context.Context, channelID string, a Announcement) error {
	f.ch <- sent{channelID: channelID, announcement: &a}
	if f.failing() {
		return errors.New("send failed")
	}
	return nil
}

func (f *fakeBroadcaster) next(t *testing.T) sent {
	t.Helper()
	select {
	case m := <-f.ch:
		return m
	case <-time.After(5 * time.Second):
		t.Fatalf("no message sent")
		panic("unreachable")
	}
}

func (f *fakeBroadcaster) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case m := <-f.ch:
		t.Fatalf("unexpected message: %+v", m)
	case <-time.After(wait):
	}
}

func newTestScheduler(t *testing.T, s *Store, out Broadcaster, interval time.Duration) *DayScheduler {
	t.Helper()
	d, err := NewDayScheduler(slogx.DiscardLogger(), s, out, SchedulerOptions{
		Interval:   interval,
		ChannelID:  "chan",
		EmbedColor: "#102030",
	})
	require.NoError(t, err)
	return d
}

func TestSchedulerRunsToEnd(t *testing.T) {
	s, loaded := loadedStore(t, gappedSchedule)
	out := newFakeBroadcaster()
	d := newTestScheduler(t, s, out, time.Millisecond)
	d.Spawn(loaded)

	var titles []string
	for range 3 {
		m := out.next(t)
		require.NotNil(t, m.announcement)
		assert.Equal(t, "chan", m.channelID)
		assert.Equal(t, 0x102030, m.announcement.Color)
		titles = append(titles, m.announcement.Title)
	}
	assert.Equal(t, []string{"Day 1", "Day 3", "Day 5"}, titles)

	m := out.next(t)
	assert.Nil(t, m.announcement)
	assert.Equal(t, EndedMessage, m.text)

	d.Close()
	out.none(t, 10*time.Millisecond)
	assert.False(t, s.Status().Active)
}

func TestSchedulerStopsAtOnce(t *testing.T) {
	s, loaded := loadedStore(t, gappedSchedule)
	out := newFakeBroadcaster()
	d := newTestScheduler(t, s, out, time.Hour)
	d.Spawn(loaded)
	assert.Equal(t, "Day 1", out.next(t).announcement.Title)

	s.StopContest("operator")
	done := make(chan struct{})
	go func() {
		d.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
	out.none(t, 10*time.Millisecond)
}

func TestFirstDayGoesOutOnLoad(t *testing.T) {
	s, loaded := loadedStore(t, gappedSchedule)
	out := newFakeBroadcaster()
	d := newTestScheduler(t, s, out, time.Hour)
	start := time.Now()
	d.Spawn(loaded)

	m := out.next(t)
	require.NotNil(t, m.announcement)
	assert.Equal(t, "Day 1", m.announcement.Title)
	assert.Less(t, time.Since(start), time.Minute)
	out.none(t, 20*time.Millisecond)
	assert.Equal(t, 1, s.Status().Contest.CurrentDay)

	s.Close()
	d.Close()
}

func TestCancelledBeforeFirstDay(t *testing.T) {
	s, loaded := loadedStore(t, gappedSchedule)
	out := newFakeBroadcaster()
	d := newTestScheduler(t, s, out, time.Hour)
	s.Close()
	d.Spawn(loaded)
	d.Close()
	out.none(t, 10*time.Millisecond)
	assert.Equal(t, 0, s.Status().Contest.CurrentDay)
}

func TestSchedulerSurvivesSendErrors(t *testing.T) {
	s, loaded := loadedStore(t, gappedSchedule)
	out := newFakeBroadcaster()
	out.fail = true
	d := newTestScheduler(t, s, out, time.Millisecond)
	d.Spawn(loaded)

	for range 3 {
		require.NotNil(t, out.next(t).announcement)
	}
	assert.Equal(t, EndedMessage, out.next(t).text)
	d.Close()
}

func TestReloadReplacesScheduler(t *testing.T) {
	s, first := loadedStore(t, gappedSchedule)
	out := newFakeBroadcaster()
	d := newTestScheduler(t, s, out, time.Hour)
	d.Spawn(first)

	s.StopContest("operator")
	info, _ := s.StartContest("op")
	second, err := s.LoadSchedule(info.ID, []byte(gappedSchedule))
	require.NoError(t, err)
	d.Spawn(second)

	assert.Error(t, first.Ctx.Err())
	assert.NoError(t, second.Ctx.Err())

	s.Close()
	d.Close()
}

func TestSpawnAfterClose(t *testing.T) {
	s, loaded := loadedStore(t, gappedSchedule)
	out := newFakeBroadcaster()
	d := newTestScheduler(t, s, out, time.Millisecond)
	d.Close()
	d.Spawn(loaded)
	out.none(t, 20*time.Millisecond)
}

func TestSchedulerOptions(t *testing.T) {
	_, err := NewDayScheduler(slogx.DiscardLogger(), nil, nil, SchedulerOptions{})
	assert.Error(t, err)
	_, err = NewDayScheduler(slogx.DiscardLogger(), nil, nil, SchedulerOptions{ChannelID: "c", Interval: -time.Second})
	assert.Error(t, err)
	_, err = NewDayScheduler(slogx.DiscardLogger(), nil, nil, SchedulerOptions{ChannelID: "c", EmbedColor: "red"})
	assert.Error(t, err)

	o := SchedulerOptions{ChannelID: "c"}
	o.FillDefaults()
	assert.Equal(t, 30*time.Second, o.Interval)
}
