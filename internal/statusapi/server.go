package statusapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alex65536/daybot/internal/util/slogx"
)

type Server struct {
	log  *slog.Logger
	serv *http.Server
}

func NewServer(log *slog.Logger, addr string, src StatusSource) *Server {
	return &Server{
		log: log,
		serv: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(log, src),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	servCtx, servCancel := context.WithCancel(ctx)
	defer servCancel()
	s.serv.BaseContext = func(net.Listener) context.Context { return servCtx }

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting http server", slog.String("addr", s.serv.Addr))
		errCh <- s.serv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen http server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("stopping http server")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := s.serv.Shutdown(shutCtx); err != nil {
		s.log.Warn("could not shut down server", slogx.Err(err))
	}
	<-errCh
	return nil
}
