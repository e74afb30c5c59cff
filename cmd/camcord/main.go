package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/camcord/camcord/internal/camera"
	"github.com/camcord/camcord/internal/config"
	"github.com/camcord/camcord/internal/device"
	"github.com/camcord/camcord/internal/diaglog"
	"github.com/camcord/camcord/internal/fileutil"
	"github.com/camcord/camcord/internal/ipc"
	"github.com/camcord/camcord/internal/media"
	"github.com/camcord/camcord/internal/media/libav"
	"github.com/camcord/camcord/internal/pidfile"
	"github.com/camcord/camcord/internal/statusws"
	"github.com/fsnotify/fsnotify"
)

const logPrefix = "[camcord]"

var (
	// Version is set at build time via -ldflags "-X main.Version=..."
	Version = "dev"

	outLog *log.Logger
	errLog *log.Logger

	// Last command outcome, surfaced through status.json
	lastAction string
	lastError  string
)

func main() {
	// --export-diag subcommand: read log, write bundle, exit.
	if len(os.Args) > 1 && os.Args[1] == "--export-diag" {
		logPath := os.Getenv("CAMCORD_LOG_PATH")
		if logPath == "" {
			logPath = "/tmp/camcord-debug.log"
		}
		diaglog.Version = Version
		path, n, err := diaglog.Export(logPath, ".")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			if os.IsNotExist(err) {
				fmt.Fprintln(os.Stderr, "hint: run with CAMCORD_DEBUG_CAPTURE=true to enable logging")
				os.Exit(1)
			}
			os.Exit(2)
		}
		fmt.Printf("Wrote: %s (%d lines)\n", path, n)
		os.Exit(0)
	}

	listDevices := flag.Bool("list-devices", false, "enumerate capture devices and exit")
	deviceFlag := flag.String("device", "", "capture device identifier (overrides config)")
	deviceIndex := flag.Int("device-index", -1, "capture device index (overrides config)")
	outFlag := flag.String("out", "", "output file for saved clips (overrides default naming)")
	duration := flag.Duration("duration", 0, "auto-stop and save after this much recorded time")
	streamOnly := flag.Bool("stream-only", false, "record commands stream without writing to disk")
	statusWS := flag.String("status-ws", "", "WebSocket status listen address (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("camcord " + Version)
		os.Exit(0)
	}

	// Recover from any panics and log them
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC in camcord: %v\n", r)
			if errLog != nil {
				errLog.Printf("PANIC: %v", r)
			}
			os.Exit(1)
		}
	}()

	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	// diaglog is opt-in via CAMCORD_DEBUG_CAPTURE=true
	logPath := os.Getenv("CAMCORD_LOG_PATH")
	if logPath == "" {
		logPath = "/tmp/camcord-debug.log"
	}
	diagLogger, diagErr := diaglog.New(logPath)
	if diagErr != nil {
		errLog.Printf("[STARTUP] WARNING: could not open diagnostic log at %s: %v (continuing)", logPath, diagErr)
		diagLogger = diaglog.NewNoOp()
	}
	defer func() { _ = diagLogger.Close() }()
	diaglog.Version = Version
	libav.ConfigureLogging(diagLogger)

	enum := device.NewEnumerator(diagLogger)

	if *listDevices {
		devices, err := enum.List()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		for i, d := range devices {
			fmt.Printf("%d: %s (api=%s)\n", i, d.Name(), d.CameraAPI())
		}
		os.Exit(0)
	}

	outLog.Println("===========================================")
	outLog.Println("Starting camcord v" + Version + "...")
	outLog.Printf("PID: %d", os.Getpid())
	outLog.Printf("Timestamp: %s", time.Now().Format(time.RFC3339))
	outLog.Println("===========================================")

	// Check for duplicate instances
	pidFilePath := pidfile.GetPIDFilePath("camcord")
	outLog.Printf("Checking PID file: %s", pidFilePath)
	pf, err := pidfile.New(pidFilePath)
	if err != nil {
		errLog.Printf("Failed to create PID file: %v", err)
		errLog.Println("Another instance of camcord may already be running.")
		errLog.Printf("If you're sure no other instance is running, remove: %s", pidFilePath)
		os.Exit(1)
	}
	defer func() {
		outLog.Println("Cleaning up before exit...")
		if err := pf.Remove(); err != nil {
			errLog.Printf("Warning: failed to remove PID file: %v", err)
		}
	}()
	outLog.Printf("PID file created: %s (PID %d)", pidFilePath, os.Getpid())

	// Load capture configuration
	outLog.Println("[STARTUP] Loading capture configuration...")
	cfg, err := config.Load()
	if err != nil {
		errLog.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}
	if *deviceFlag != "" {
		cfg.Device = *deviceFlag
		cfg.DeviceIndex = nil
	}
	if *deviceIndex >= 0 {
		cfg.DeviceIndex = deviceIndex
	}
	if *statusWS != "" {
		cfg.StatusWS = *statusWS
	}
	outLog.Printf("[STARTUP] Config: mode=%s output_dir=%s %dfps %dx%d %s",
		cfg.Mode, cfg.OutputDir, cfg.FrameRate, cfg.Width, cfg.Height, cfg.PixelFormat)

	deviceName, err := selectDevice(cfg, enum)
	if err != nil {
		errLog.Printf("Device selection failed: %v", err)
		if errors.Is(err, device.ErrDeviceNotFound) {
			errLog.Println("Run 'camcord --list-devices' to see available devices")
		}
		os.Exit(1)
	}
	outLog.Printf("[STARTUP] Using device: %s", deviceName)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		errLog.Printf("Failed to create output directory %s: %v", cfg.OutputDir, err)
		os.Exit(1)
	}

	mode, err := camera.ParseMode(cfg.Mode)
	if err != nil {
		errLog.Printf("Invalid mode: %v", err)
		os.Exit(1)
	}

	// Optional microphone; the controller points it at each recording
	// session's audio track, so the file lives and dies with the session.
	var mic media.Microphone
	if cfg.Audio != nil && cfg.Audio.Enabled {
		mic = libav.NewMicrophone(cfg.Audio.Device)
		outLog.Printf("[STARTUP] Microphone enabled (device=%q)", cfg.Audio.Device)
	}

	srcOpts := media.DefaultSourceOptions()
	srcOpts.FrameRate = cfg.FrameRate
	if cfg.Width > 0 {
		srcOpts.Width = cfg.Width
		srcOpts.Height = cfg.Height
		srcOpts.BufferSize = cfg.Width * cfg.Height * 4
	}
	if cfg.PixelFormat != "" {
		srcOpts.PixelFormat = cfg.PixelFormat
	}

	ctrl, err := camera.NewController(deviceName, camera.Options{
		Mode:       mode,
		Stack:      libav.NewStack(),
		Microphone: mic,
		Source:     &srcOpts,
		Log:        diagLogger,
	})
	if err != nil {
		errLog.Printf("Failed to create capture controller: %v", err)
		os.Exit(1)
	}
	if *outFlag != "" {
		if err := ctrl.SetOutFile(*outFlag); err != nil {
			errLog.Printf("Failed to set output file: %v", err)
			os.Exit(1)
		}
	}

	outLog.Println("[STARTUP] Opening frame source...")
	if err := openWithRetry(ctrl); err != nil {
		errLog.Printf("Failed to open device %s: %v", deviceName, err)
		os.Exit(1)
	}
	defer func() {
		outLog.Println("[SHUTDOWN] Releasing frame source...")
		if err := ctrl.Close(); err != nil {
			errLog.Printf("Close failed: %v", err)
		}
	}()
	if m := ctrl.Metadata(); m != nil {
		outLog.Printf("[STARTUP] Stream: %dx%d @ %.2ffps (%s)", m.Width, m.Height, m.FrameRate, m.PixelFormat)
	}

	// Optional WebSocket status broadcaster
	var broadcaster *statusws.Broadcaster
	if cfg.StatusWS != "" {
		broadcaster = statusws.New(diagLogger)
		wsErr := broadcaster.Start(cfg.StatusWS)
		go func() {
			if err, ok := <-wsErr; ok && err != nil {
				errLog.Printf("Status WebSocket listener failed: %v", err)
			}
		}()
		outLog.Printf("[STARTUP] Status WebSocket listening on %s", cfg.StatusWS)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			broadcaster.Shutdown(ctx)
		}()
	}

	// Write initial status
	if err := publishStatus(ctrl, broadcaster); err != nil {
		errLog.Printf("Failed to write initial status: %v", err)
	}

	// Command file watcher feeds the main loop; the controller is
	// single-owner so commands are never handled off-goroutine.
	cmdCh := make(chan ipc.Command, 8)
	go watchCommands(cmdCh, time.Duration(cfg.PollIntervalMs)*time.Millisecond)

	frameInterval := time.Second / time.Duration(cfg.FrameRate)
	frameTicker := time.NewTicker(frameInterval)
	defer frameTicker.Stop()

	statusTicker := time.NewTicker(time.Second)
	defer statusTicker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	outLog.Println("[STARTUP] Signal handlers registered (SIGINT, SIGTERM)")

	outLog.Println("===========================================")
	outLog.Println("[RUNNING] camcord is capturing")

	for {
		select {
		case <-frameTicker.C:
			if _, err := ctrl.GetVideoFrame(0); err != nil {
				errLog.Printf("Frame pull failed: %v", err)
				lastError = err.Error()
				continue
			}

			if ctrl.Status() == camera.StatusStopping {
				outLog.Println("Stream ended, finalizing recording")
				stopAndSave(ctrl, cfg, deviceName)
				continue
			}

			if *duration > 0 && ctrl.Status() == camera.StatusRecording &&
				ctrl.RecordingTime() >= duration.Seconds() {
				outLog.Printf("Duration limit reached (%.2fs), stopping", ctrl.RecordingTime())
				stopAndSave(ctrl, cfg, deviceName)
			}

		case <-statusTicker.C:
			if err := publishStatus(ctrl, broadcaster); err != nil {
				errLog.Printf("Failed to write status: %v", err)
			}

		case cmd := <-cmdCh:
			if quit := handleCommand(cmd, ctrl, cfg, deviceName, *streamOnly); quit {
				outLog.Println("Quit command received - shutting down")
				shutdown(ctrl, cfg, deviceName)
				return
			}
			if err := publishStatus(ctrl, broadcaster); err != nil {
				errLog.Printf("Failed to write status: %v", err)
			}

		case <-sigChan:
			outLog.Println("===========================================")
			outLog.Printf("[SHUTDOWN] Received shutdown signal at %s", time.Now().Format(time.RFC3339))
			shutdown(ctrl, cfg, deviceName)
			outLog.Println("[SHUTDOWN] Shutting down gracefully")
			outLog.Println("===========================================")
			return
		}
	}
}

// selectDevice resolves the capture device from flags/config, falling back to
// the first enumerated device.
func selectDevice(cfg *config.CaptureConfig, enum *device.Enumerator) (string, error) {
	if cfg.DeviceIndex != nil {
		d, err := enum.ByIndex(*cfg.DeviceIndex)
		if err != nil {
			return "", err
		}
		return d.Name(), nil
	}
	if cfg.Device != "" {
		// Explicit identifiers are passed through untouched so users can
		// name devices enumeration cannot see.
		return cfg.Device, nil
	}
	devices, err := enum.List()
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("%w: no capture devices detected", device.ErrDeviceNotFound)
	}
	return devices[0].Name(), nil
}

// openWithRetry retries Open a few times; cameras routinely need a moment
// after being acquired before the first frame arrives.
func openWithRetry(ctrl *camera.Controller) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if err = ctrl.Open(); err == nil {
			return nil
		}
		if !errors.Is(err, camera.ErrNotReady) {
			return err
		}
		outLog.Printf("Device not ready (attempt %d/3), retrying...", attempt)
		time.Sleep(500 * time.Millisecond)
	}
	return err
}

// handleCommand processes one control command. Returns true on quit.
func handleCommand(cmd ipc.Command, ctrl *camera.Controller, cfg *config.CaptureConfig, deviceName string, streamOnly bool) bool {
	outLog.Printf("Received command: %s", cmd)
	lastAction = string(cmd)
	lastError = ""

	switch cmd {
	case ipc.CmdRecord:
		if err := ctrl.Record(streamOnly); err != nil {
			errLog.Printf("Record failed: %v", err)
			lastError = err.Error()
		} else {
			outLog.Println("Recording started")
		}

	case ipc.CmdRecordStream:
		if err := ctrl.Record(true); err != nil {
			errLog.Printf("Stream-only record failed: %v", err)
			lastError = err.Error()
		} else {
			outLog.Println("Stream-only session started")
		}

	case ipc.CmdStop:
		if err := ctrl.Stop(); err != nil {
			errLog.Printf("Stop failed: %v", err)
			lastError = err.Error()
		} else {
			outLog.Println("Recording stopped")
		}

	case ipc.CmdSave:
		saveClip(ctrl, cfg, deviceName)

	case ipc.CmdSnapshot:
		if err := ctrl.Snapshot(); err != nil {
			errLog.Printf("Snapshot failed: %v", err)
			lastError = err.Error()
		}

	case ipc.CmdQuit:
		return true

	default:
		errLog.Printf("Unknown command: %s", cmd)
	}
	return false
}

// saveClip muxes the stopped recording into the output directory.
func saveClip(ctrl *camera.Controller, cfg *config.CaptureConfig, deviceName string) {
	path := ctrl.OutFile()
	if path == "" {
		path = fileutil.UniquePath(filepath.Join(cfg.OutputDir, fileutil.DefaultClipName(deviceName, time.Now())))
	}

	size, err := ctrl.Save(path)
	if err != nil {
		errLog.Printf("Save failed: %v", err)
		lastError = err.Error()
		return
	}
	outLog.Printf("Clip saved: %s (%d bytes)", path, size)
}

// stopAndSave finalizes the active recording and writes the clip.
func stopAndSave(ctrl *camera.Controller, cfg *config.CaptureConfig, deviceName string) {
	if err := ctrl.Stop(); err != nil {
		errLog.Printf("Stop failed: %v", err)
		lastError = err.Error()
		return
	}
	saveClip(ctrl, cfg, deviceName)
}

// shutdown finalizes any active recording before the deferred Close runs.
func shutdown(ctrl *camera.Controller, cfg *config.CaptureConfig, deviceName string) {
	switch ctrl.Status() {
	case camera.StatusRecording, camera.StatusStopping:
		outLog.Println("[SHUTDOWN] Recording is active - stopping and saving before shutdown...")
		stopAndSave(ctrl, cfg, deviceName)
	}
}

// publishStatus writes status.json and pushes the snapshot to WebSocket
// subscribers when the broadcaster is enabled.
func publishStatus(ctrl *camera.Controller, broadcaster *statusws.Broadcaster) error {
	snap := &ipc.StatusSnapshot{
		Status:        string(ctrl.Status()),
		Mode:          string(ctrl.Mode()),
		Device:        ctrl.Device(),
		Ready:         ctrl.IsReady(),
		StreamTime:    ctrl.StreamTime(),
		RecordingTime: ctrl.RecordingTime(),
		FrameCount:    ctrl.FrameCount(),
		LastClip:      ctrl.LastClip(),
		LastAction:    lastAction,
		LastError:     lastError,
		Timestamp:     time.Now(),
	}
	if broadcaster != nil {
		broadcaster.Publish(snap)
	}
	return ipc.WriteStatus(snap)
}

// watchCommands monitors cmd.txt and forwards commands to the main loop.
func watchCommands(cmdCh chan<- ipc.Command, pollInterval time.Duration) {
	cmdPath := filepath.Join(os.Getenv("HOME"), ".cache", "camcord", "cmd.txt")
	cmdDir := filepath.Dir(cmdPath)

	// The directory must exist before it can be watched
	if err := os.MkdirAll(cmdDir, 0755); err != nil {
		errLog.Printf("Failed to create command directory: %v", err)
		return
	}

	// Try to use fsnotify for efficient file watching
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errLog.Printf("fsnotify not available, falling back to polling: %v", err)
		watchCommandsWithPolling(cmdPath, cmdCh, pollInterval)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			errLog.Printf("Failed to close watcher: %v", err)
		}
	}()

	if err := watcher.Add(cmdDir); err != nil {
		errLog.Printf("Failed to watch command directory, falling back to polling: %v", err)
		watchCommandsWithPolling(cmdPath, cmdCh, pollInterval)
		return
	}

	outLog.Println("Command watcher started (using fsnotify)")

	// Fallback polling ticker in case fsnotify misses events
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	lastCheckTime := time.Now()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				outLog.Println("fsnotify watcher closed, switching to polling")
				watchCommandsWithPolling(cmdPath, cmdCh, pollInterval)
				return
			}

			if event.Name == cmdPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				// Small delay to ensure write is complete
				time.Sleep(50 * time.Millisecond)

				cmd, err := ipc.ReadCommand()
				if err != nil || cmd == "" {
					continue
				}
				cmdCh <- cmd
				lastCheckTime = time.Now()
			}

		case <-pollTicker.C:
			if fileInfo, err := os.Stat(cmdPath); err == nil {
				if fileInfo.ModTime().After(lastCheckTime) {
					time.Sleep(50 * time.Millisecond)

					cmd, err := ipc.ReadCommand()
					if err == nil && cmd != "" {
						cmdCh <- cmd
					}
					lastCheckTime = time.Now()
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				outLog.Println("fsnotify error channel closed, switching to polling")
				watchCommandsWithPolling(cmdPath, cmdCh, pollInterval)
				return
			}
			errLog.Printf("File watcher error: %v", err)
		}
	}
}

// watchCommandsWithPolling is a pure polling-based fallback for command monitoring
func watchCommandsWithPolling(cmdPath string, cmdCh chan<- ipc.Command, pollInterval time.Duration) {
	outLog.Printf("Command watcher started (using polling fallback, %s interval)", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastCheckTime := time.Now()

	for range ticker.C {
		fileInfo, err := os.Stat(cmdPath)
		if err != nil {
			continue // File doesn't exist yet, keep polling
		}

		if fileInfo.ModTime().After(lastCheckTime) {
			time.Sleep(50 * time.Millisecond)

			cmd, err := ipc.ReadCommand()
			if err == nil && cmd != "" {
				cmdCh <- cmd
			}
			lastCheckTime = time.Now()
		}
	}
}

// initLogging sets up log files with rotation support
func initLogging() error {
	logDir := "/tmp"

	outLogPath := filepath.Join(logDir, "camcord.out.log")
	errLogPath := filepath.Join(logDir, "camcord.err.log")

	if err := rotateLogIfNeeded(outLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate out log: %v\n", err)
	}
	if err := rotateLogIfNeeded(errLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate err log: %v\n", err)
	}

	outFile, err := os.OpenFile(outLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	errFile, err := os.OpenFile(errLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	outLog = log.New(outFile, logPrefix+" ", log.LstdFlags)
	errLog = log.New(errFile, logPrefix+" ERROR: ", log.LstdFlags)

	return nil
}

// rotateLogIfNeeded rotates a log file if it exceeds maxSize bytes
func rotateLogIfNeeded(logPath string, maxSize int64) error {
	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return nil // Log doesn't exist yet
	}
	if err != nil {
		return err
	}

	if info.Size() < maxSize {
		return nil // Log is under size limit
	}

	// Rotate: rename current log to .old, removing previous .old
	oldPath := logPath + ".old"
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old log: %w", err)
	}

	return os.Rename(logPath, oldPath)
}
