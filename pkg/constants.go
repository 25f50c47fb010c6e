package shared

const (
	ProjectID = "krea-rehab" // Can be overridden by env var in main if needed

	TopicSessionCompleted       = "topic-session-completed"
	TopicSessionFailed          = "topic-session-failed"
	TopicSessionDataUnavailable = "topic-session-data-unavailable"
	TopicHistoricalSyncDone     = "topic-historical-sync-completed"

	CollectionPatients           = "patients"
	CollectionSessions           = "sessions"
	CollectionHeartRateReadings  = "heart_rate_readings"
	CollectionBaselineThresholds = "baseline_thresholds"
	CollectionWeeklyScores       = "weekly_scores"
)
