package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bidhub/procurement/internal/authz"
)

type logFieldsKey struct{}

// requestActor is filled once auth and scope ran further down the chain.
type requestActor struct {
	userID int64
	scope  authz.OrganizationFilter
}

// Logging writes one structured line per request, including the caller and
// organization once they are known.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		actor := &requestActor{}

		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), logFieldsKey{}, actor)))

		event := log.Info().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("duration", time.Since(start))

		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			event = event.Str("request_id", reqID)
		}
		event = event.Str("ip", realIPFromRequest(r))
		event = actor.fields(event)

		if ua := r.Header.Get("User-Agent"); ua != "" {
			event = event.Str("user_agent", ua)
		}

		event.Msg("http_request")
	})
}

func (a *requestActor) fields(event *zerolog.Event) *zerolog.Event {
	if a.userID == 0 {
		return event
	}
	event = event.Int64("user_id", a.userID)
	if a.scope.CooperativeID != nil {
		event = event.Int64("cooperative_id", *a.scope.CooperativeID)
	}
	if a.scope.DistrictID != nil {
		event = event.Int64("district_id", *a.scope.DistrictID)
	}
	return event
}

func recordActor(ctx context.Context, u *authz.User, f authz.OrganizationFilter) {
	actor, ok := ctx.Value(logFieldsKey{}).(*requestActor)
	if !ok || u == nil {
		return
	}
	actor.userID = u.ID
	actor.scope = f
}
