// Package bot translates chat platform events into contest store operations. It knows nothing
// about a concrete platform: everything it needs is expressed by the interfaces below.
package bot

import (
	"context"
	"errors"

	"github.com/alex65536/daybot/internal/contest"
)

const (
	CommandName = "contest"

	SubcommandStart = "start"
	SubcommandStop  = "stop"
)

const (
	msgAwaitingData    = "Awaiting json with giveaway details."
	msgAlreadyRunning  = "A contest is already running. Stop it with /contest stop first."
	msgStopped         = "The giveaway has been stopped."
	msgPermissionError = "Could not verify your permissions. Please try again."
	msgLoaded          = "Contest details loaded!"
	msgLoadFailed      = "Failed to load contest details. Please restart the process with /contest start"
	msgDownloadFailed  = "Failed to download attachment. Please restart the process with /contest start"
)

var (
	ErrMissingSubcommand = errors.New("missing subcommand")
	ErrUnknownSubcommand = errors.New("unknown subcommand")
)

type Messenger interface {
	contest.Broadcaster
}

type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type PermissionChecker interface {
	HasPermission(ctx context.Context, guildID, userID string) (bool, error)
}

type Spawner interface {
	Spawn(loaded contest.ScheduleLoaded)
}

type CommandEvent struct {
	GuildID   string
	ChannelID string
	UserID    string
	Name      string
	// Subcommand is empty if the payload carried none.
	Subcommand string
}

type Attachment struct {
	Filename    string
	ContentType string
	URL         string
	Size        int
}

type UploadEvent struct {
	GuildID     string
	ChannelID   string
	UserID      string
	Attachments []Attachment
}
