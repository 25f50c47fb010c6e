package pubsub

// CloudEvent type URNs emitted by the rehab pipeline.
const (
	EventTypeSessionCompleted        = "com.kreahealth.rehab.session.completed"
	EventTypeSessionFailed           = "com.kreahealth.rehab.session.failed"
	EventTypeSessionDataUnavailable  = "com.kreahealth.rehab.session.data_unavailable"
	EventTypeHistoricalSyncCompleted = "com.kreahealth.rehab.historical_sync.completed"
)

// CloudEvent source URNs.
const (
	EventSourceOrchestrator   = "//kreahealth.com/rehab-server/orchestrator"
	EventSourceHistoricalSync = "//kreahealth.com/rehab-server/historical-sync"
	EventSourceAPI            = "//kreahealth.com/rehab-server/api"
)
