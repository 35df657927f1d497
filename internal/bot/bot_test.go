package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alex65536/daybot/internal/contest"
	"github.com/alex65536/daybot/internal/util/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schedule = `[{"day": 1, "species": 4, "version": "Red", "hints": ["a"]}]`

type fakePerms struct {
	allowed map[string]bool
	err     error
}

func (p *fakePerms) HasPermission(_ context.Context, guildID, userID string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return p.allowed[userID], nil
}

type fakeDownloader struct {
	data  map[string][]byte
	err   error
	calls int
	// hook runs before returning, to interleave store operations with the download.
	hook func()
}

func (d *fakeDownloader) Download(_ context.Context, url string) ([]byte, error) {
	d.calls++
	if d.hook != nil {
		d.hook()
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.data[url], nil
}

type textMsg struct {
	channelID string
	text      string
}

type fakeMessenger struct {
	mu    sync.Mutex
	texts []textMsg
}

func (m *fakeMessenger) SendText(_ context.Context, channelID string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, textMsg{channelID: channelID, text: text})
	return nil
}

func (m *fakeMessenger) SendAnnouncement(context.Context, string, contest.Announcement) error {
	return nil
}

type fakeSpawner struct {
	spawned []contest.ScheduleLoaded
}

func (s *fakeSpawner) Spawn(loaded contest.ScheduleLoaded) {
	s.spawned = append(s.spawned, loaded)
}

type env struct {
	store *contest.Store
	perms *fakePerms
	dl    *fakeDownloader
	out   *fakeMessenger
	sched *fakeSpawner
	cmd   *CommandHandler
	up    *UploadHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := slogx.DiscardLogger()
	e := &env{
		store: contest.NewStore(log),
		perms: &fakePerms{allowed: map[string]bool{"op": true}},
		dl:    &fakeDownloader{data: map[string][]byte{"https://cdn/schedule.json": []byte(schedule)}},
		out:   &fakeMessenger{},
		sched: &fakeSpawner{},
	}
	t.Cleanup(e.store.Close)
	e.cmd = NewCommandHandler(log, e.store, e.perms)
	e.up = NewUploadHandler(log, e.store, e.perms, e.dl, e.out, e.sched)
	return e
}

func (e *env) command(t *testing.T, user, sub string) string {
	t.Helper()
	reply, err := e.cmd.HandleCommand(context.Background(), CommandEvent{
		GuildID:    "g",
		UserID:     user,
		Name:       CommandName,
		Subcommand: sub,
	})
	require.NoError(t, err)
	return reply
}

func (e *env) upload(user string, atts ...Attachment) {
	e.up.HandleUpload(context.Background(), UploadEvent{
		GuildID:     "g",
		ChannelID:   "uploads",
		UserID:      user,
		Attachments: atts,
	})
}

var jsonAttachment = Attachment{
	Filename:    "schedule.json",
	ContentType: "application/json; charset=utf-8",
	URL:         "https://cdn/schedule.json",
}

func TestStartStopCommands(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, msgAwaitingData, e.command(t, "op", SubcommandStart))
	assert.Equal(t, msgAlreadyRunning, e.command(t, "op", SubcommandStart))
	assert.True(t, e.store.Status().Active)

	assert.Equal(t, msgStopped, e.command(t, "op", SubcommandStop))
	assert.False(t, e.store.Status().Active)
	assert.Equal(t, msgStopped, e.command(t, "op", SubcommandStop))
}

func TestCommandPermissions(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, "", e.command(t, "stranger", SubcommandStart))
	assert.False(t, e.store.Status().Active)

	e.perms.err = errors.New("gateway down")
	assert.Equal(t, msgPermissionError, e.command(t, "op", SubcommandStart))
	assert.False(t, e.store.Status().Active)
}

func TestCommandMalformed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	reply, err := e.cmd.HandleCommand(ctx, CommandEvent{UserID: "op", Name: "other", Subcommand: SubcommandStart})
	assert.NoError(t, err)
	assert.Equal(t, "", reply)

	_, err = e.cmd.HandleCommand(ctx, CommandEvent{UserID: "op", Name: CommandName})
	assert.ErrorIs(t, err, ErrMissingSubcommand)

	_, err = e.cmd.HandleCommand(ctx, CommandEvent{UserID: "op", Name: CommandName, Subcommand: "pause"})
	assert.ErrorIs(t, err, ErrUnknownSubcommand)
	assert.False(t, e.store.Status().Active)
}

func TestUploadLoadsSchedule(t *testing.T) {
	e := newEnv(t)
	e.command(t, "op", SubcommandStart)
	e.upload("op", Attachment{Filename: "pic.png", ContentType: "image/png", URL: "https://cdn/pic.png"}, jsonAttachment)

	assert.Equal(t, []textMsg{{channelID: "uploads", text: msgLoaded}}, e.out.texts)
	require.Len(t, e.sched.spawned, 1)
	st := e.store.Status()
	assert.Equal(t, st.Contest.ID, e.sched.spawned[0].ContestID)
	assert.True(t, st.Contest.Loaded)
	assert.False(t, st.AwaitingData)

	// The gate is closed now: a second upload does nothing.
	e.upload("op", jsonAttachment)
	assert.Len(t, e.sched.spawned, 1)
	assert.Equal(t, 1, e.dl.calls)
}

func TestUploadIgnored(t *testing.T) {
	e := newEnv(t)
	e.upload("op", jsonAttachment)
	assert.Equal(t, 0, e.dl.calls)

	e.command(t, "op", SubcommandStart)
	e.upload("stranger", jsonAttachment)
	e.upload("op")
	e.upload("op", Attachment{ContentType: "text/plain", URL: "https://cdn/schedule.json"})
	e.upload("op", Attachment{URL: "https://cdn/schedule.json"})
	assert.Equal(t, 0, e.dl.calls)
	assert.Empty(t, e.out.texts)
	assert.True(t, e.store.Status().AwaitingData)
}

func TestUploadPermissionError(t *testing.T) {
	e := newEnv(t)
	e.command(t, "op", SubcommandStart)
	e.perms.err = errors.New("gateway down")
	e.upload("op", jsonAttachment)
	assert.Equal(t, []textMsg{{channelID: "uploads", text: msgPermissionError}}, e.out.texts)
	assert.True(t, e.store.Status().AwaitingData)
	assert.Equal(t, 0, e.dl.calls)
}

func TestUploadDownloadFailure(t *testing.T) {
	e := newEnv(t)
	e.command(t, "op", SubcommandStart)
	e.dl.err = errors.New("connection reset")
	e.upload("op", jsonAttachment)
	assert.Equal(t, []textMsg{{channelID: "uploads", text: msgDownloadFailed}}, e.out.texts)
	assert.False(t, e.store.Status().Active)
	assert.Empty(t, e.sched.spawned)
}

func TestUploadMalformed(t *testing.T) {
	e := newEnv(t)
	e.command(t, "op", SubcommandStart)
	e.dl.data[jsonAttachment.URL] = []byte(`{"oops": true}`)
	e.upload("op", jsonAttachment)
	assert.Equal(t, []textMsg{{channelID: "uploads", text: msgLoadFailed}}, e.out.texts)
	assert.False(t, e.store.Status().Active)
	assert.Empty(t, e.sched.spawned)
}

func TestUploadRacesWithStop(t *testing.T) {
	e := newEnv(t)
	e.command(t, "op", SubcommandStart)
	e.dl.hook = func() { e.command(t, "op", SubcommandStop) }
	e.upload("op", jsonAttachment)
	assert.Empty(t, e.out.texts)
	assert.Empty(t, e.sched.spawned)
	assert.False(t, e.store.Status().Active)
}

func TestFailedDownloadSparesNewerContest(t *testing.T) {
	e := newEnv(t)
	e.command(t, "op", SubcommandStart)
	e.dl.err = errors.New("timeout")
	e.dl.hook = func() {
		e.command(t, "op", SubcommandStop)
		e.command(t, "op", SubcommandStart)
	}
	e.upload("op", jsonAttachment)
	assert.True(t, e.store.Status().Active)
	assert.True(t, e.store.Status().AwaitingData)
}

func TestUploadRacesWithRestart(t *testing.T) {
	e := newEnv(t)
	e.command(t, "op", SubcommandStart)
	e.dl.hook = func() {
		e.command(t, "op", SubcommandStop)
		e.command(t, "op", SubcommandStart)
	}
	e.upload("op", jsonAttachment)
	assert.Empty(t, e.out.texts)
	assert.Empty(t, e.sched.spawned)
	st := e.store.Status()
	assert.True(t, st.AwaitingData)
	assert.False(t, st.Contest.Loaded)
}
