package middleware

import "context"

type contextKey string

const (
	ctxAgentID    contextKey = "agent_id"
	ctxApproverID contextKey = "approver_id"
)

func AgentIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAgentID).(string); ok {
		return v
	}
	return ""
}

func ApproverIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxApproverID).(string); ok {
		return v
	}
	return ""
}

// WithAgentID injects the acting agent identifier into the context.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAgentID, agentID)
}

// WithApproverID injects the acting approver identifier into the context.
func WithApproverID(ctx context.Context, approverID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxApproverID, approverID)
}
