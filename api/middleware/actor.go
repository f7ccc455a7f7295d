package middleware

import (
	"net/http"
	"strings"

	"github.com/orderlinehq/backend/pkg/logger"
)

const (
	agentIDHeader    = "X-Agent-Id"
	approverIDHeader = "X-Approver-Id"
)

// ActorContext lifts the acting agent/approver headers into the request
// context. Controllers validate presence and format per route; this layer only
// propagates what the gateway forwarded.
func ActorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if agentID := strings.TrimSpace(r.Header.Get(agentIDHeader)); agentID != "" {
				ctx = WithAgentID(ctx, agentID)
				if logg != nil {
					ctx = logg.WithActorID(ctx, agentID)
				}
			}
			if approverID := strings.TrimSpace(r.Header.Get(approverIDHeader)); approverID != "" {
				ctx = WithApproverID(ctx, approverID)
				if logg != nil {
					ctx = logg.WithActorID(ctx, approverID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
