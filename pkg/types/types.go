package types

import "time"

// Session lifecycle statuses.
const (
	SessionStatusActive          = "active"
	SessionStatusInProgress      = "in_progress"
	SessionStatusProcessing      = "processing"
	SessionStatusPendingSync     = "pending_sync"
	SessionStatusCompleted       = "completed"
	SessionStatusFailed          = "failed"
	SessionStatusDataUnavailable = "data_unavailable"
	SessionStatusAbandoned       = "abandoned"
)

// Retry attempt statuses.
const (
	AttemptStatusPending   = "pending"
	AttemptStatusCompleted = "completed"
	AttemptStatusFailed    = "failed"
)

// Retry attempt results.
const (
	AttemptResultSuccess          = "success"
	AttemptResultInsufficientData = "insufficient_data"
	AttemptResultTokenBusy        = "token_busy"
	AttemptResultTokenExpired     = "token_expired"
	AttemptResultError            = "error"
)

// Credential statuses.
const (
	CredentialStatusValid   = "valid"
	CredentialStatusInvalid = "invalid"
)

// Session risk levels.
const (
	RiskLevelLow      = "Low"
	RiskLevelModerate = "Moderate"
	RiskLevelHigh     = "High"
)

// Patient health statuses relative to their baseline.
const (
	HealthStatusAtRisk            = "at_risk"
	HealthStatusDeclining         = "declining"
	HealthStatusConsistent        = "consistent"
	HealthStatusImproving         = "improving"
	HealthStatusStrongImprovement = "strong_improvement"
)

// GoogleCredential is the patient's stored Google Fit OAuth credential,
// including the cooperative lock other workers respect while fetching.
type GoogleCredential struct {
	AccessToken        string
	RefreshToken       string
	ExpiresAt          time.Time
	Status             string
	InUse              bool
	LockedBy           string
	LockedAt           time.Time
	LastUsedAt         time.Time
	InvalidatedAt      time.Time
	InvalidationReason string
}

// PatientRecord is the patient document, one per enrolled patient.
type PatientRecord struct {
	ID                  string
	Name                string
	Age                 int
	Email               string
	RegimeWeeks         int
	OnBetaBlockers      bool
	LowEjectionFraction bool
	HealthStatus        string
	FCMTokens           []string
	Credential          *GoogleCredential
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ZoneSet holds the personalised heart rate zones for one session. The
// set is snapshotted onto the session at creation so later regime
// changes never rewrite history.
type ZoneSet struct {
	MaxPermissibleHR int
	TargetHR         int
	WarmupZoneMin    int
	WarmupZoneMax    int
	ExerciseZoneMin  int
	ExerciseZoneMax  int
	CooldownZoneMin  int
	CooldownZoneMax  int
	SessionDuration  int // minutes
}

// RetryAttempt is one slot in a session's retry schedule.
type RetryAttempt struct {
	Attempt      int
	ScheduledFor *time.Time
	ExecutedAt   *time.Time
	Status       string
	Result       string
	DataPoints   int
	ErrorMessage string
}

// SessionRecord is the session document. Scores and heart rate stats are
// only meaningful once Status is completed.
type SessionRecord struct {
	ID                   string
	PatientID            string
	WeekNumber           int
	SessionAttemptNumber int
	Status               string
	Zones                *ZoneSet
	StartedAt            time.Time
	EndedAt              time.Time
	ActualDuration       int // minutes
	ProcessingStartsAt   time.Time
	AttemptCount         int
	RetrySchedule        []RetryAttempt
	NextAttemptAt        *time.Time
	LastAttemptAt        time.Time
	FailureReason        string

	WarmupScore      int
	ExerciseScore    int
	CooldownScore    int
	SessionScore     int
	RiskLevel        string
	MaxHR            int
	MinHR            int
	AvgHR            int
	DataCompleteness float64
	BaselineScore    float64
	HasBaseline      bool
	IsCountedInWeekly bool
	Summary          string

	SentToSpectrum bool
	SpectrumSentAt time.Time
	SpectrumStatus string

	RawArtifactPath string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HeartRatePoint is a single minute-resolution heart rate sample,
// either measured or imputed.
type HeartRatePoint struct {
	Timestamp time.Time
	Value     int
	Imputed   bool
}

// HeartRateReadingRecord is a persisted heart rate sample in the
// historical store. Readings are deduplicated on patient and timestamp.
type HeartRateReadingRecord struct {
	ID           string
	PatientID    string
	RecordedAt   time.Time
	HeartRate    int
	ActivityType string
	DataSource   string
	CreatedAt    time.Time
}

// BaselineThresholdRecord is an immutable baseline snapshot created at
// the configured session milestones. Newer rows supersede older ones;
// old rows are kept for audit.
type BaselineThresholdRecord struct {
	ID                  string
	PatientID           string
	CalculatedAtSession int
	BaselineScore       float64
	StandardDeviation   float64
	UpperThreshold1SD   float64
	UpperThreshold2SD   float64
	LowerThreshold1SD   float64
	LowerThreshold2SD   float64
	RestingHeartRate    float64
	CreatedAt           time.Time
}

// WeeklyScoreRecord is the per-patient per-week aggregate, keyed
// deterministically so recomputation upserts in place.
type WeeklyScoreRecord struct {
	ID              string
	PatientID       string
	WeekNumber      int
	WeeklyScore     float64
	CumulativeScore float64
	UpdatedAt       time.Time
}
