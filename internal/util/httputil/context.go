package httputil

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alex65536/daybot/internal/util/idgen"
)

type reqIDKey struct{}

func WrapRequestContext(parent context.Context) context.Context {
	return context.WithValue(parent, reqIDKey{}, idgen.ID())
}

func WrapRequest(req *http.Request) *http.Request {
	return req.WithContext(WrapRequestContext(req.Context()))
}

func ExtractReqID(ctx context.Context) string {
	val := ctx.Value(reqIDKey{})
	if val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// WithRequestLog tags every request with an id and logs it once served.
func WithRequestLog(log *slog.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		req = WrapRequest(req)
		h.ServeHTTP(w, req)
		log.Debug("served request",
			slog.String("req_id", ExtractReqID(req.Context())),
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
		)
	})
}
