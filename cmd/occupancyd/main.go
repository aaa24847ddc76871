// Command occupancyd runs the occupancy inference service. It ingests motion,
// presence, and phone events from a UDP gateway and an optional serial sensor,
// feeds them through the particle tracker and the track associator, and serves
// the JSON API and web monitor over HTTP.
//
// Configuration is layered: built-in defaults, then the YAML file named by
// -config (or $OCCUPANCY_CONFIG), then OCCUPANCY_* environment variables.
//
//	occupancyd [flags]
//	occupancyd [flags] migrate <up|down|status|version N|force N>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/occupancy/roomgraph"
	"github.com/banshee-data/occupancy.report/internal/sensormux"
	"github.com/banshee-data/occupancy.report/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to the service config YAML (default: $OCCUPANCY_CONFIG)")
	devMode       = flag.Bool("dev", false, "Replay fixtures.txt through a mock sensor mux instead of opening a serial device")
	disableSerial = flag.Bool("disable-serial", false, "Run without a serial sensor source")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("occupancyd %s\n", version.String())
		return
	}

	cfg, err := config.LoadServiceConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load service config: %v", err)
	}

	// `occupancyd [flags] migrate <action>` manages the schema and exits.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], cfg.DBPath)
		return
	}

	// A broken tuning file should not keep the service down: log it and run
	// on the documented defaults.
	tuning := config.DefaultTuningConfig()
	if cfg.TuningPath != "" {
		loaded, err := config.LoadTuningConfig(cfg.TuningPath)
		if err != nil {
			log.Printf("Failed to load tuning config %s, continuing with defaults: %v", cfg.TuningPath, err)
		} else {
			tuning = loaded
			log.Printf("Loaded tuning config from %s", cfg.TuningPath)
		}
	}

	graph, err := roomgraph.Load(cfg.TopologyPath)
	if err != nil {
		log.Fatalf("Failed to load room topology %s: %v", cfg.TopologyPath, err)
	}
	log.Printf("Loaded room topology %s (%d rooms)", cfg.TopologyPath, graph.NumRooms())

	var database *db.DB
	if cfg.DBPath != "" {
		database, err = db.NewDB(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
	} else {
		log.Printf("No database path configured, running without persistence")
	}

	var sensors sensormux.SensorMuxInterface
	switch {
	case *devMode:
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		sensors = sensormux.NewMockSensorMux(data)
	case *disableSerial || cfg.SerialPort == "":
		sensors = sensormux.NewDisabledSensorMux()
	default:
		m, err := sensormux.NewRealSensorMux(cfg.SerialPort, sensormux.PortOptions{BaudRate: cfg.SerialBaud})
		if err != nil {
			log.Fatalf("failed to open sensor serial port %s: %v", cfg.SerialPort, err)
		}
		sensors = m
	}
	defer sensors.Close()

	if err := sensors.Initialize(); err != nil {
		log.Fatalf("failed to initialize sensor device: %v", err)
	}

	d := newDaemon(cfg, tuning, graph, database, sensors)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("daemon error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
