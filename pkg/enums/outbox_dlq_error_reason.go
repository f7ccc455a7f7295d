package enums

// OutboxDLQErrorReason maps to the outbox_dlq_error_reason enum in Postgres.
type OutboxDLQErrorReason string

const (
	DLQReasonMaxAttempts   OutboxDLQErrorReason = "max_attempts_exceeded"
	DLQReasonPublishFailed OutboxDLQErrorReason = "publish_failed"
	DLQReasonBadPayload    OutboxDLQErrorReason = "bad_payload"
)
