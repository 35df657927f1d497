// Package statusapi exposes a read-only HTTP view of the bot state.
package statusapi

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/alex65536/daybot/internal/contest"
	"github.com/alex65536/daybot/internal/util/httputil"
	"github.com/alex65536/daybot/internal/util/slogx"
	"github.com/goccy/go-json"
)

type StatusSource interface {
	Status() contest.Status
}

func makeHandler(log *slog.Logger, fn func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		log := log.With(slog.String("req_id", httputil.ExtractReqID(req.Context())))
		if err := func() error {
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return httputil.MakeError(http.StatusMethodNotAllowed, "method not allowed")
			}
			rsp, err := fn(req)
			if err != nil {
				return err
			}
			data, err := json.Marshal(rsp)
			if err != nil {
				log.Warn("error marshalling json", slogx.Err(err))
				return fmt.Errorf("marshal json response: %w", err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(data); err != nil {
				log.Info("error writing response", slogx.Err(err))
			}
			return nil
		}(); err != nil {
			if err := httputil.WriteErrorResponse(err, w); err != nil {
				log.Info("error writing error response", slogx.Err(err))
			}
		}
	}
}

// Handle registers the status endpoints on mux. Responses are gzip-compressed for clients
// that accept it.
func Handle(log *slog.Logger, mux *http.ServeMux, prefix string, src StatusSource) {
	log = log.With(slog.String("component", "statusapi"))
	mux.Handle(prefix+"/healthz", gziphandler.GzipHandler(
		http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("ok"))
		}),
	))
	mux.Handle(prefix+"/api/contest", gziphandler.GzipHandler(
		makeHandler(log, func(*http.Request) (any, error) {
			return src.Status(), nil
		}),
	))
}

// NewHandler builds the complete status handler with request logging.
func NewHandler(log *slog.Logger, src StatusSource) http.Handler {
	mux := http.NewServeMux()
	Handle(log, mux, "", src)
	return httputil.WithRequestLog(log, mux)
}
