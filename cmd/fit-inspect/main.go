// fit-inspect dumps the heart rate stream from a FIT file the way the
// upload endpoint would ingest it. Useful when a patient's watch export
// decodes to fewer readings than expected.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kreahealth/rehab-server/pkg/fitingest"
)

func main() {
	summaryOnly := flag.Bool("summary", false, "Print stats only, not every reading")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: fit-inspect [-summary] <fit-file>")
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}

	readings, err := fitingest.ExtractHeartRate(data, "inspect", time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}

	minHR, maxHR, sum := readings[0].HeartRate, readings[0].HeartRate, 0
	for _, r := range readings {
		if r.HeartRate < minHR {
			minHR = r.HeartRate
		}
		if r.HeartRate > maxHR {
			maxHR = r.HeartRate
		}
		sum += r.HeartRate
	}

	first := readings[0].RecordedAt
	last := readings[len(readings)-1].RecordedAt
	fmt.Printf("Readings: %d\n", len(readings))
	fmt.Printf("Window:   %s .. %s (%s)\n",
		first.Format(time.RFC3339), last.Format(time.RFC3339), last.Sub(first))
	fmt.Printf("HR:       min %d / avg %d / max %d\n", minHR, sum/len(readings), maxHR)

	if *summaryOnly {
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tHR")
	for _, r := range readings {
		fmt.Fprintf(w, "%s\t%d\n", r.RecordedAt.Format("15:04:05"), r.HeartRate)
	}
	w.Flush()
}
