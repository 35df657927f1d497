package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/alex65536/daybot/internal/bot"
	"github.com/alex65536/daybot/internal/contest"
	"github.com/alex65536/daybot/internal/discord"
	"github.com/alex65536/daybot/internal/statusapi"
	"github.com/alex65536/daybot/internal/util/signal"
	"github.com/alex65536/daybot/internal/util/slogx"
	"github.com/alex65536/daybot/internal/util/style"
	"github.com/alex65536/daybot/internal/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var botCmd = &cobra.Command{
	Use:     "daybot",
	Args:    cobra.ExactArgs(0),
	Version: version.Version,
	Short:   "Start the contest bot",
	Long: `Daybot runs day-by-day contests in a chat channel.

A moderator starts a contest with /contest start and uploads a JSON schedule. The bot then
announces one day of the schedule per tick until the schedule is exhausted or the contest is
stopped with /contest stop.
`,
	SilenceUsage: true,
}

func loadOptions(optsPath, envPath string) (Options, error) {
	var opts Options
	if optsPath != "" {
		data, err := os.ReadFile(optsPath)
		if err != nil {
			return Options{}, fmt.Errorf("read options file: %w", err)
		}
		if err := toml.Unmarshal(data, &opts); err != nil {
			return Options{}, fmt.Errorf("unmarshal options file: %w", err)
		}
	}
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Options{}, fmt.Errorf("load env file: %w", err)
	}
	if err := opts.MixEnv(os.LookupEnv); err != nil {
		return Options{}, fmt.Errorf("mix env into options: %w", err)
	}
	opts.FillDefaults()
	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("bad options: %w", err)
	}
	return opts, nil
}

func run(ctx context.Context, log *slog.Logger, opts Options) error {
	session, err := discord.NewSession(opts.Discord)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	client := discord.NewClient(session, opts.Discord)
	dl := discord.NewDownloader(log.With(slog.String("component", "download")), opts.Discord.Download, nil)

	store := contest.NewStore(log)
	sched, err := contest.NewDayScheduler(log, store, client, opts.Scheduler)
	if err != nil {
		store.Close()
		return fmt.Errorf("create day scheduler: %w", err)
	}
	defer func() {
		store.Close()
		sched.Close()
	}()

	gateway := discord.NewGateway(log, session, opts.Discord, discord.Handlers{
		Commands: bot.NewCommandHandler(log, store, client),
		Uploads:  bot.NewUploadHandler(log, store, client, dl, client, sched),
	})

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return gateway.Run(gctx)
	})
	if opts.StatusAddr != "" {
		srv := statusapi.NewServer(log.With(slog.String("component", "statusapi")), opts.StatusAddr, store)
		group.Go(func() error {
			return srv.Run(gctx)
		})
	}
	return group.Wait()
}

func main() {
	p := botCmd.Flags()
	optsPath := p.StringP(
		"options", "o", "",
		"options file",
	)
	envPath := p.StringP(
		"env", "e", ".env",
		"env file with secrets",
	)

	botCmd.RunE = func(cmd *cobra.Command, _args []string) error {
		opts, err := loadOptions(*optsPath, *envPath)
		if err != nil {
			return err
		}
		level, err := slogx.ParseLevel(opts.LogLevel)
		if err != nil {
			panic("must not happen")
		}
		log := slogx.New(style.LogOutput(), level, style.IsStderrTTY())

		ctx, cancel := signal.NotifyContext(context.Background(), log, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := run(ctx, log, opts); err != nil {
			select {
			case <-ctx.Done():
			default:
				log.Error("fatal error", slogx.Err(err))
				return err
			}
		}
		return nil
	}

	if err := botCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, style.WithSE("error:", 1, 31), err)
		os.Exit(1)
	}
}
