package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonMissingCredential ReasonCode = "missing_credential"
	ReasonInactiveProvider  ReasonCode = "inactive_provider"

	ReasonRealtimeConnect ReasonCode = "realtime_connect"
	ReasonRealtimeSession ReasonCode = "realtime_session"
	ReasonRealtimeSend    ReasonCode = "realtime_send"
	ReasonRealtimeClosed  ReasonCode = "realtime_closed"

	ReasonWebhookProbe ReasonCode = "webhook_probe"
	ReasonWebhookSend  ReasonCode = "webhook_send"

	ReasonFrameParse   ReasonCode = "frame_parse"
	ReasonStoreWrite   ReasonCode = "store_write"
	ReasonStoreRead    ReasonCode = "store_read"
	ReasonRouteTimeout ReasonCode = "route_timeout"

	ReasonCaptureConnect ReasonCode = "capture_connect"
	ReasonCaptureSend    ReasonCode = "capture_send"
)
