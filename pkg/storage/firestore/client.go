package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Raw exposes the underlying client for transactional work the typed
// wrappers cannot express (credential lock takeover).
func (c *Client) Raw() *firestore.Client {
	return c.fs
}

func (c *Client) Patients() *Collection[types.PatientRecord] {
	return &Collection[types.PatientRecord]{
		Ref:           c.fs.Collection(shared.CollectionPatients),
		ToFirestore:   PatientToFirestore,
		FromFirestore: FirestoreToPatient,
	}
}

func (c *Client) Sessions() *Collection[types.SessionRecord] {
	return &Collection[types.SessionRecord]{
		Ref:           c.fs.Collection(shared.CollectionSessions),
		ToFirestore:   SessionToFirestore,
		FromFirestore: FirestoreToSession,
	}
}

func (c *Client) HeartRateReadings() *Collection[types.HeartRateReadingRecord] {
	return &Collection[types.HeartRateReadingRecord]{
		Ref:           c.fs.Collection(shared.CollectionHeartRateReadings),
		ToFirestore:   ReadingToFirestore,
		FromFirestore: FirestoreToReading,
	}
}

func (c *Client) BaselineThresholds() *Collection[types.BaselineThresholdRecord] {
	return &Collection[types.BaselineThresholdRecord]{
		Ref:           c.fs.Collection(shared.CollectionBaselineThresholds),
		ToFirestore:   BaselineThresholdToFirestore,
		FromFirestore: FirestoreToBaselineThreshold,
	}
}

func (c *Client) WeeklyScores() *Collection[types.WeeklyScoreRecord] {
	return &Collection[types.WeeklyScoreRecord]{
		Ref:           c.fs.Collection(shared.CollectionWeeklyScores),
		ToFirestore:   WeeklyScoreToFirestore,
		FromFirestore: FirestoreToWeeklyScore,
	}
}
