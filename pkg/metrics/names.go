package metrics

// Event names recorded by the assistant core.
const (
	EventConnectionState   = "connection_state"
	EventRoute             = "route"
	EventProviderDrift     = "provider_drift"
	EventReconcile         = "reconcile_reconnect"
	EventCommandAccepted   = "command_accepted"
	EventCommandSuppressed = "command_suppressed"
	EventResponse          = "response"
)

// Tag keys shared by the events above.
const (
	TagProvider = "provider"
	TagState    = "state"
	TagReason   = "reason"
	TagOutcome  = "outcome"
	TagTraceID  = "trace_id"
)
