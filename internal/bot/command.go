package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alex65536/daybot/internal/contest"
	"github.com/alex65536/daybot/internal/util/slogx"
)

type CommandHandler struct {
	log   *slog.Logger
	store *contest.Store
	perms PermissionChecker
}

func NewCommandHandler(log *slog.Logger, store *contest.Store, perms PermissionChecker) *CommandHandler {
	return &CommandHandler{log: log, store: store, perms: perms}
}

// HandleCommand returns the acknowledgement to show to the issuing user. An empty string means
// that nothing must be sent.
func (h *CommandHandler) HandleCommand(ctx context.Context, ev CommandEvent) (string, error) {
	if ev.Name != CommandName {
		return "", nil
	}
	log := h.log.With(
		slog.String("guild_id", ev.GuildID),
		slog.String("user_id", ev.UserID),
		slog.String("subcommand", ev.Subcommand),
	)

	ok, err := h.perms.HasPermission(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		log.Warn("could not check permissions", slogx.Err(err))
		return msgPermissionError, nil
	}
	if !ok {
		log.Info("command from unauthorized user dropped")
		return "", nil
	}

	switch ev.Subcommand {
	case "":
		return "", ErrMissingSubcommand
	case SubcommandStart:
		if _, created := h.store.StartContest(ev.UserID); !created {
			return msgAlreadyRunning, nil
		}
		return msgAwaitingData, nil
	case SubcommandStop:
		h.store.StopContest("stopped by " + ev.UserID)
		return msgStopped, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownSubcommand, ev.Subcommand)
	}
}
