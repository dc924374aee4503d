package log

const (
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	FieldUserID    = "user_id"
	FieldSessionID = "session_id"

	FieldService = "service"

	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
