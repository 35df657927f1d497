package discord

import (
	"fmt"
	"time"

	"github.com/alex65536/daybot/internal/util/backoff"
)

type DownloadOptions struct {
	MaxSize int64           `toml:"max-size"`
	Timeout time.Duration   `toml:"timeout"`
	Backoff backoff.Options `toml:"backoff"`
}

func (o *DownloadOptions) FillDefaults() {
	if o.MaxSize == 0 {
		o.MaxSize = 1 << 20
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	o.Backoff.FillDefaults()
}

type Options struct {
	Token            string          `toml:"-"`
	ApplicationID    string          `toml:"application-id"`
	PermissionRole   string          `toml:"permission-role"`
	RegisterCommands bool            `toml:"register-commands"`
	SendsPerSecond   float64         `toml:"sends-per-second"`
	HandlerTimeout   time.Duration   `toml:"handler-timeout"`
	Download         DownloadOptions `toml:"download"`
}

func (o *Options) FillDefaults() {
	if o.SendsPerSecond == 0 {
		o.SendsPerSecond = 5
	}
	if o.HandlerTimeout == 0 {
		o.HandlerTimeout = time.Minute
	}
	o.Download.FillDefaults()
}

func (o *Options) Validate() error {
	if o.Token == "" {
		return fmt.Errorf("no bot token")
	}
	if o.ApplicationID == "" {
		return fmt.Errorf("no application id")
	}
	if o.PermissionRole == "" {
		return fmt.Errorf("no permission role")
	}
	if o.SendsPerSecond < 0 {
		return fmt.Errorf("negative sends per second")
	}
	if o.Download.MaxSize < 0 {
		return fmt.Errorf("negative download size limit")
	}
	if err := o.Download.Backoff.Validate(); err != nil {
		return fmt.Errorf("download backoff: %w", err)
	}
	return nil
}
