package shared

import "errors"

// Sentinel errors shared across the credential, telemetry and
// orchestration layers. Callers match with errors.Is.
var (
	// ErrCredentialNotFound means the patient has no stored Google Fit
	// credential at all.
	ErrCredentialNotFound = errors.New("google fit credential not found")

	// ErrCredentialInvalid means the stored credential has been marked
	// invalid and cannot be used until the patient reconnects.
	ErrCredentialInvalid = errors.New("google fit credential invalid")

	// ErrReauthRequired means a refresh was attempted and rejected by the
	// provider (invalid_grant); the patient must re-authorise.
	ErrReauthRequired = errors.New("google fit reauthorisation required")

	// ErrLockBusy means another worker holds the patient's credential lock
	// and it is not yet stale enough to take over.
	ErrLockBusy = errors.New("credential lock held by another worker")

	// ErrRateLimited maps a 429 from the Google Fit API.
	ErrRateLimited = errors.New("google fit rate limit exceeded")

	// ErrUnauthorized maps a 401 from the Google Fit API after the token
	// layer has already had its chance to refresh.
	ErrUnauthorized = errors.New("google fit access token expired or invalid")

	// ErrNotFound is the generic storage miss.
	ErrNotFound = errors.New("document not found")
)
