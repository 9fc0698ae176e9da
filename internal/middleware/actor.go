package middleware

import (
	"context"
	"net/http"
	"strings"
)

// ActorHeader carries the operator id set by the authenticating proxy.
const ActorHeader = "X-Actor-ID"

type actorKey struct{}

func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ActorHeader))
		if id != "" {
			r = r.WithContext(context.WithValue(r.Context(), actorKey{}, id))
		}
		next.ServeHTTP(w, r)
	})
}

// ActorID returns the operator id stored by Actor, or "".
func ActorID(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}
