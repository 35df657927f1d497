package bot

import (
	"context"
	"errors"
	"log/slog"
	"mime"

	"github.com/alex65536/daybot/internal/contest"
	"github.com/alex65536/daybot/internal/util/sliceutil"
	"github.com/alex65536/daybot/internal/util/slogx"
)

const scheduleMediaType = "application/json"

type UploadHandler struct {
	log   *slog.Logger
	store *contest.Store
	perms PermissionChecker
	dl    Downloader
	out   Messenger
	sched Spawner
}

func NewUploadHandler(
	log *slog.Logger,
	store *contest.Store,
	perms PermissionChecker,
	dl Downloader,
	out Messenger,
	sched Spawner,
) *UploadHandler {
	return &UploadHandler{
		log:   log,
		store: store,
		perms: perms,
		dl:    dl,
		out:   out,
		sched: sched,
	}
}

func isSchedule(a Attachment) bool {
	mediaType, _, err := mime.ParseMediaType(a.ContentType)
	return err == nil && mediaType == scheduleMediaType
}

func (h *UploadHandler) notify(ctx context.Context, log *slog.Logger, channelID, text string) {
	if err := h.out.SendText(ctx, channelID, text); err != nil {
		log.Error("could not notify user", slogx.Err(err))
	}
}

// HandleUpload feeds the first JSON attachment of an operator's message into the contest
// awaiting its schedule. Messages arriving when no schedule is awaited are ignored.
func (h *UploadHandler) HandleUpload(ctx context.Context, ev UploadEvent) {
	if len(ev.Attachments) == 0 {
		return
	}
	contestID, ok := h.store.AwaitingContest()
	if !ok {
		return
	}
	log := h.log.With(
		slog.String("contest_id", contestID),
		slog.String("guild_id", ev.GuildID),
		slog.String("channel_id", ev.ChannelID),
		slog.String("user_id", ev.UserID),
	)

	ok, err := h.perms.HasPermission(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		log.Warn("could not check permissions", slogx.Err(err))
		h.notify(ctx, log, ev.ChannelID, msgPermissionError)
		return
	}
	if !ok {
		return
	}

	candidates := sliceutil.FilterMap(ev.Attachments, func(a Attachment) (Attachment, bool) {
		return a, isSchedule(a)
	})
	if len(candidates) == 0 {
		log.Debug("no json attachment in upload")
		return
	}
	att := candidates[0]
	log = log.With(slog.String("filename", att.Filename))

	raw, err := h.dl.Download(ctx, att.URL)
	if err != nil {
		log.Warn("could not download attachment", slogx.Err(err))
		h.store.Abandon(contestID, "attachment download failed")
		h.notify(ctx, log, ev.ChannelID, msgDownloadFailed)
		return
	}

	loaded, err := h.store.LoadSchedule(contestID, raw)
	switch {
	case errors.Is(err, contest.ErrNotAwaitingData):
		// The contest was stopped or replaced while we were downloading.
		log.Info("upload no longer expected, ignoring")
	case err != nil:
		h.notify(ctx, log, ev.ChannelID, msgLoadFailed)
	default:
		h.notify(ctx, log, ev.ChannelID, msgLoaded)
		h.sched.Spawn(loaded)
	}
}
