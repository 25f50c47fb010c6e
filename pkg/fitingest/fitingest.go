// Package fitingest extracts heart rate samples from uploaded FIT
// files. Patients on watches without Google Fit sync can upload the
// activity file instead; the samples land in the same reading store
// the session pipeline reads from.
package fitingest

import (
	"bytes"
	"fmt"
	"time"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"github.com/kreahealth/rehab-server/pkg/types"
)

// DataSource marks readings that came from a FIT upload.
const DataSource = "fit_upload"

// invalidHR is the FIT sentinel for a missing heart rate field.
const invalidHR = 0xFF

// ExtractHeartRate decodes FIT bytes and returns one reading per
// record message carrying a valid heart rate, in file order.
func ExtractHeartRate(data []byte, patientID string, now time.Time) ([]*types.HeartRateReadingRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty FIT data")
	}

	fitDec := decoder.New(bytes.NewReader(data))

	var readings []*types.HeartRateReadingRecord
	for fitDec.Next() {
		fitData, err := fitDec.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode FIT file: %w", err)
		}

		for _, msg := range fitData.Messages {
			if msg.Num != typedef.MesgNumRecord {
				continue
			}
			recordMsg := mesgdef.NewRecord(&msg)
			if recordMsg.Timestamp.IsZero() || recordMsg.HeartRate == invalidHR {
				continue
			}
			readings = append(readings, &types.HeartRateReadingRecord{
				PatientID:    patientID,
				RecordedAt:   recordMsg.Timestamp.UTC(),
				HeartRate:    int(recordMsg.HeartRate),
				ActivityType: "fit_upload",
				DataSource:   DataSource,
				CreatedAt:    now,
			})
		}
	}

	if len(readings) == 0 {
		return nil, fmt.Errorf("no heart rate records found in FIT file")
	}
	return readings, nil
}
