package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/alex65536/daybot/internal/util/backoff"
	"github.com/alex65536/daybot/internal/util/httputil"
	"github.com/alex65536/daybot/internal/util/human"
	"github.com/alex65536/daybot/internal/util/slogx"
)

var errTooLarge = errors.New("attachment too large")

type Downloader struct {
	log    *slog.Logger
	o      DownloadOptions
	client *http.Client
}

func NewDownloader(log *slog.Logger, o DownloadOptions, client *http.Client) *Downloader {
	o.FillDefaults()
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}
	return &Downloader{log: log, o: o, client: client}
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	rsp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(rsp.Body, d.o.MaxSize))
		_ = rsp.Body.Close()
	}()
	if err := httputil.ErrorFromResponse(rsp); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(rsp.Body, d.o.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > d.o.MaxSize {
		return nil, fmt.Errorf("%w: limit is %v", errTooLarge, human.Size(d.o.MaxSize, 3))
	}
	return data, nil
}

func retryable(err error) bool {
	if errors.Is(err, errTooLarge) || errors.Is(err, context.Canceled) {
		return false
	}
	return httputil.IsTemporary(err)
}

func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	attempt := 0
	err := backoff.Do(ctx, d.o.Backoff, retryable, func(ctx context.Context) error {
		attempt++
		var err error
		data, err = d.fetch(ctx, url)
		if err != nil {
			d.log.Info("download attempt failed", slog.Int("attempt", attempt), slogx.Err(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	d.log.Debug("downloaded attachment", slog.String("size", human.Size(int64(len(data)), 3)))
	return data, nil
}
