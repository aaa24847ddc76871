// Command rollup-backfill recomputes daily per-room occupancy rollups from
// the stored sensor events. With -start and -end it covers that range;
// without either it recomputes the full event history. Rollups are rewritten
// per day, so re-runs are idempotent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/units"
)

func main() {
	var dbPath string
	var startStr string
	var endStr string
	var gapStr string
	var timezone string

	flag.StringVar(&dbPath, "db", "occupancy_data.db", "path to sqlite db")
	flag.StringVar(&startStr, "start", "", "start time (RFC3339); empty means full history")
	flag.StringVar(&endStr, "end", "", "end time (RFC3339); empty means full history")
	flag.StringVar(&gapStr, "gap", "7m", "how long one event counts as continued occupancy")
	flag.StringVar(&timezone, "tz", "UTC", "timezone for day boundaries")
	flag.Parse()

	gap, err := time.ParseDuration(gapStr)
	if err != nil {
		log.Fatalf("invalid gap: %v", err)
	}
	loc, err := units.Location(timezone)
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}

	dbConn, err := db.NewDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	w := db.NewRollupWorker(dbConn, gap)
	w.Location = loc

	ctx := context.Background()
	switch {
	case startStr == "" && endStr == "":
		if err := w.RunFullHistory(ctx); err != nil {
			log.Fatalf("full-history backfill failed: %v", err)
		}
	case startStr == "" || endStr == "":
		log.Fatalf("start and end must both be provided (or neither for full history)")
	default:
		startT, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			log.Fatalf("invalid start: %v", err)
		}
		endT, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			log.Fatalf("invalid end: %v", err)
		}
		fmt.Printf("backfilling %s -> %s (%s days)\n", startT.Format(time.RFC3339), endT.Format(time.RFC3339), timezone)
		if err := w.RunRange(ctx, float64(startT.UTC().Unix()), float64(endT.UTC().Unix())); err != nil {
			log.Fatalf("range backfill failed: %v", err)
		}
	}

	fmt.Println("backfill complete")
}
