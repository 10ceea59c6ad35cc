package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/kisscool-fr/simdive/internal/config"
	"github.com/kisscool-fr/simdive/internal/database"
	"github.com/kisscool-fr/simdive/internal/engine"
	"github.com/kisscool-fr/simdive/internal/logging"
	"github.com/kisscool-fr/simdive/internal/model"
	"github.com/kisscool-fr/simdive/internal/monitor"
	"github.com/kisscool-fr/simdive/internal/profile"
	"github.com/kisscool-fr/simdive/internal/recorder"
	"github.com/kisscool-fr/simdive/internal/storage"
	"github.com/kisscool-fr/simdive/internal/storage/memory"
	"github.com/kisscool-fr/simdive/internal/telemetry"
)

// version defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "simdive"
)

var (
	SlogManager *logging.SlogManager
	Logger      *slog.Logger

	SessionStartTime time.Time = time.Now()

	logFilePath string
	logFile     *os.File
)

func main() {
	setupLogging()

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "run":
		if len(args) < 2 {
			fmt.Println("No profile file provided.")
			printUsage()
			os.Exit(1)
		}
		err = runProfile(args[1])
	case "validate":
		if len(args) < 2 {
			fmt.Println("No profile file provided.")
			printUsage()
			os.Exit(1)
		}
		err = validateProfile(args[1])
	case "export":
		if len(args) < 2 {
			err = listSessions()
		} else {
			err = exportSession(args[1])
		}
	case "version":
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		Logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`Usage: %s <command> [args]

Commands:
  run <profile.json>       simulate a dive profile and record the session
  validate <profile.json>  check a profile file and print its plan
  export [session.db]      export a recorded session to JSON, or list sessions
  version                  print version information
`, AppName)
}

// setupLogging loads the config and initializes the slog manager: text log
// to a session file (stdout when the file cannot be created), plus optional
// Graylog shipping.
func setupLogging() {
	SlogManager = logging.NewSlogManager()

	err := config.Load(".")
	if err != nil {
		SlogManager.Setup(nil, "info", nil)
		Logger = SlogManager.Logger()
		Logger.Warn("Failed to load config, using defaults!", "error", err)
		return
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	logFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	logFile, err = os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log file: %v\n", err)
		logFile = nil
	}

	var fileWriter io.Writer
	if logFile != nil {
		fileWriter = logFile
	}

	var graylog io.Writer
	if viper.GetBool("graylog.enabled") {
		gw, err := logging.DialGraylog(viper.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to Graylog: %v\n", err)
		} else {
			graylog = gw
		}
	}

	SlogManager.Setup(fileWriter, viper.GetString("logLevel"), graylog)
	Logger = SlogManager.Logger()
	if logFile != nil {
		Logger.Info("Logging to file", "path", logFilePath)
	}
}

// zerologLogger builds the zerolog logger used by the database and telemetry
// layers, writing to the same session log file.
func zerologLogger() zerolog.Logger {
	if logFile != nil {
		return zerolog.New(logFile).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func validateProfile(path string) error {
	p, err := profile.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Profile %q is valid.\n", p.ID)
	fmt.Printf("  name:       %s\n", p.Name)
	fmt.Printf("  duration:   %.1f min\n", p.TotalTime())
	fmt.Printf("  max depth:  %.1f m\n", p.MaxPlannedDepth())
	fmt.Printf("  waypoints:  %d\n", len(p.Waypoints))
	fmt.Printf("  events:     %d\n", len(p.Events))
	fmt.Printf("  tank:       %.0f bar / %.0f L, SAC %.0f L/min\n",
		p.InitialTankPressure, p.TankVolume, p.SACRate)
	return nil
}

// listSessions prints the recorded session database files in the configured
// output directory.
func listSessions() error {
	dir := viper.GetString("storage.outputDir")
	paths, err := database.GetSessionDBPaths(dir)
	if err != nil {
		return fmt.Errorf("listing sessions in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		fmt.Printf("No recorded sessions in %s.\n", dir)
		return nil
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

// exportSession reads a recorded SQLite session file and writes it out as a
// JSON document next to it.
func exportSession(path string) error {
	mgr := database.NewManager(zerologLogger())
	db, err := mgr.GetSqliteDB(path)
	if err != nil {
		return fmt.Errorf("opening session file %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("accessing sql interface: %w", err)
	}
	defer sqlDB.Close()

	var session model.DiveSession
	if err := db.Order("id").First(&session).Error; err != nil {
		return fmt.Errorf("reading session from %s: %w", path, err)
	}

	var snapshots []model.SnapshotRecord
	if err := db.Where("session_id = ?", session.ID).Order("dive_time").Find(&snapshots).Error; err != nil {
		return fmt.Errorf("reading snapshots: %w", err)
	}
	var events []model.EventRecord
	if err := db.Where("session_id = ?", session.ID).Order("dive_time").Find(&events).Error; err != nil {
		return fmt.Errorf("reading events: %w", err)
	}

	export := memory.SessionExport{
		Session:   &session,
		Snapshots: snapshots,
		Events:    events,
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	outPath := strings.TrimSuffix(path, ".db") + ".json"
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	fmt.Printf("Exported %d snapshots and %d events to %s\n", len(snapshots), len(events), outPath)
	return nil
}

func runProfile(path string) error {
	p, err := profile.Load(path)
	if err != nil {
		return err
	}

	zlog := zerologLogger()

	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, zlog)
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage backend: %w", err)
	}
	defer backend.Close()
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	var tm *telemetry.Manager
	if config.GetInfluxConfig().Enabled {
		backupPath := filepath.Join(viper.GetString("logsDir"),
			fmt.Sprintf("%s_telemetry_%s.lp.gz", AppName, SessionStartTime.Format("20060102_150405")))
		tm = telemetry.NewManager(zlog, backupPath)
		if err := tm.Connect(); err != nil {
			Logger.Warn("Telemetry disabled", "error", err)
			tm = nil
		} else {
			defer tm.Close()
		}
	}

	rec, err := recorder.New(backend, tm, Logger)
	if err != nil {
		return fmt.Errorf("creating recorder: %w", err)
	}

	decoCfg := config.GetDecoConfig()
	playbackCfg := config.GetPlaybackConfig()
	eng := engine.New(engine.Options{
		GFLow:        decoCfg.GFLow,
		GFHigh:       decoCfg.GFHigh,
		Speed:        playbackCfg.Speed,
		StepSize:     playbackCfg.StepSizeSec,
		TickInterval: time.Duration(playbackCfg.TickIntervalMs) * time.Millisecond,
		Logger:       Logger,
	})

	// Stamp every log line of the run with the session
	SlogManager.Context = func() []slog.Attr {
		return []slog.Attr{
			slog.String("profile", p.ID),
			slog.String("storage", storageCfg.Type),
		}
	}
	defer func() { SlogManager.Context = nil }()

	mon := monitor.NewService(monitor.Dependencies{
		LogManager: SlogManager,
		Engine:     eng,
		StatusDir:  viper.GetString("logsDir"),
		Interval:   time.Second,
	})
	if err := mon.Start(); err != nil {
		Logger.Warn("Status monitor failed to start", "error", err)
	}
	defer mon.Stop()

	rec.Attach(eng)
	if err := rec.Start(p, decoCfg.GFLow, decoCfg.GFHigh); err != nil {
		return err
	}

	eng.LoadProfile(p)
	eng.Play()
	Logger.Info("Dive started",
		"profile", p.ID,
		"duration", p.TotalTime(),
		"speed", playbackCfg.Speed)

	waitForDive(eng)

	if err := rec.Stop(); err != nil {
		return err
	}

	if exp, ok := backend.(storage.Exportable); ok {
		if path := exp.GetExportedFilePath(); path != "" {
			Logger.Info("Session saved", "path", path)
			fmt.Printf("Session saved to %s\n", path)
		}
	}

	state := eng.State()
	if state != nil {
		Logger.Info("Dive finished",
			"diveTime", state.Time,
			"maxDepth", state.MaxDepth,
			"tankPressure", state.Air.TankPressure)
	}
	return nil
}

// waitForDive blocks until playback reaches the end of the profile or the
// process is interrupted.
func waitForDive(eng *engine.Engine) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			Logger.Warn("Interrupted, ending dive early")
			eng.Pause()
			return
		case <-ticker.C:
			pb := eng.Playback()
			if pb.State != engine.Playing {
				return
			}
		}
	}
}
