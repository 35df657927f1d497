package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alex65536/daybot/internal/bot"
	"github.com/alex65536/daybot/internal/util/sliceutil"
	"github.com/alex65536/daybot/internal/util/slogx"
	"github.com/bwmarrin/discordgo"
)

var contestCommand = &discordgo.ApplicationCommand{
	Name:        bot.CommandName,
	Description: "Base command for contest bot",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        bot.SubcommandStart,
			Description: "Start a contest with a given json",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        bot.SubcommandStop,
			Description: "Stop the current contest",
		},
	},
}

func NewSession(o Options) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + o.Token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	return s, nil
}

type Handlers struct {
	Commands *bot.CommandHandler
	Uploads  *bot.UploadHandler
}

// Gateway routes gateway events to the bot handlers. discordgo runs every event handler in its
// own goroutine, so handlers may run concurrently with each other and with day schedulers.
type Gateway struct {
	log *slog.Logger
	s   *discordgo.Session
	o   Options
	h   Handlers

	gctx       context.Context
	cancel     func()
	registered atomic.Bool
}

func NewGateway(log *slog.Logger, s *discordgo.Session, o Options, h Handlers) *Gateway {
	o.FillDefaults()
	gctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		log:    log,
		s:      s,
		o:      o,
		h:      h,
		gctx:   gctx,
		cancel: cancel,
	}
	s.AddHandler(g.onReady)
	s.AddHandler(g.onInteraction)
	s.AddHandler(g.onMessage)
	return g
}

// Run keeps the gateway connection open until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	defer g.cancel()
	g.log.Info("opening gateway connection")
	if err := g.s.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	<-ctx.Done()
	g.log.Info("closing gateway connection")
	g.cancel()
	if err := g.s.Close(); err != nil {
		g.log.Warn("could not close gateway", slogx.Err(err))
	}
	return nil
}

func (g *Gateway) handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(g.gctx, g.o.HandlerTimeout)
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	g.log.Info(fmt.Sprintf("%v is connected", r.User.Username))
	if !g.o.RegisterCommands || g.registered.Swap(true) {
		return
	}
	ctx, cancel := g.handlerContext()
	defer cancel()
	cmd, err := s.ApplicationCommandCreate(g.o.ApplicationID, "", contestCommand, discordgo.WithContext(ctx))
	if err != nil {
		g.registered.Store(false)
		g.log.Error("could not register commands", slogx.Err(err))
		return
	}
	g.log.Info("registered application command", slog.String("name", cmd.Name), slog.String("id", cmd.ID))
}

func (g *Gateway) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev, ok := commandEventFrom(i)
	if !ok {
		return
	}
	log := g.log.With(slog.String("interaction_id", i.ID))
	ctx, cancel := g.handlerContext()
	defer cancel()

	reply, err := g.h.Commands.HandleCommand(ctx, ev)
	if err != nil {
		if errors.Is(err, bot.ErrMissingSubcommand) || errors.Is(err, bot.ErrUnknownSubcommand) {
			log.Error("malformed command payload", slogx.Err(err))
		} else {
			log.Error("could not handle command", slogx.Err(err))
		}
		return
	}
	if reply == "" {
		return
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		log.Error("cannot respond to slash command", slogx.Err(err))
	}
}

func (g *Gateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	ev, ok := uploadEventFrom(m)
	if !ok {
		return
	}
	ctx, cancel := g.handlerContext()
	defer cancel()
	g.h.Uploads.HandleUpload(ctx, ev)
}

func commandEventFrom(i *discordgo.InteractionCreate) (bot.CommandEvent, bool) {
	if i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return bot.CommandEvent{}, false
	}
	data := i.ApplicationCommandData()
	ev := bot.CommandEvent{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Name:      data.Name,
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		ev.UserID = i.Member.User.ID
	case i.User != nil:
		ev.UserID = i.User.ID
	default:
		return bot.CommandEvent{}, false
	}
	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			ev.Subcommand = opt.Name
			break
		}
	}
	return ev, true
}

func uploadEventFrom(m *discordgo.MessageCreate) (bot.UploadEvent, bool) {
	if m.Message == nil || m.Author == nil || m.Author.Bot || len(m.Attachments) == 0 {
		return bot.UploadEvent{}, false
	}
	return bot.UploadEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Attachments: sliceutil.Map(m.Attachments, func(a *discordgo.MessageAttachment) bot.Attachment {
			return bot.Attachment{
				Filename:    a.Filename,
				ContentType: a.ContentType,
				URL:         a.URL,
				Size:        a.Size,
			}
		}),
	}, true
}
