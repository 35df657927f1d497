package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alex65536/daybot/internal/contest"
	"github.com/alex65536/daybot/internal/discord"
	"github.com/alex65536/daybot/internal/util/slogx"
)

type Options struct {
	LogLevel   string                   `toml:"log-level"`
	StatusAddr string                   `toml:"status-addr"`
	Scheduler  contest.SchedulerOptions `toml:"scheduler"`
	Discord    discord.Options          `toml:"discord"`
}

func (o *Options) FillDefaults() {
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
	o.Scheduler.FillDefaults()
	o.Discord.FillDefaults()
}

func (o *Options) Validate() error {
	if _, err := slogx.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if err := o.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := o.Discord.Validate(); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// MixEnv overrides the options with the values found in the environment. The token is only ever
// taken from the environment.
func (o *Options) MixEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}
	if v, ok := get("DISCORD_TOKEN"); ok {
		o.Discord.Token = v
	}
	if v, ok := get("APPLICATION_ID"); ok {
		o.Discord.ApplicationID = v
	}
	if v, ok := get("PERMISSION_ROLE"); ok {
		o.Discord.PermissionRole = v
	}
	if v, ok := get("CONTEST_CHANNEL"); ok {
		o.Scheduler.ChannelID = v
	}
	if v, ok := get("REGISTER_COMMANDS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse REGISTER_COMMANDS: %w", err)
		}
		o.Discord.RegisterCommands = b
	}
	return nil
}
