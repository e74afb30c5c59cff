package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/camcord/camcord/internal/autoupdate"
	"github.com/camcord/camcord/internal/config"
	"github.com/camcord/camcord/internal/device"
	"github.com/camcord/camcord/internal/diaglog"
	"github.com/camcord/camcord/internal/ipc"
	"github.com/camcord/camcord/internal/validation"
	"github.com/gorilla/websocket"
)

var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `camcordctl - control a running camcord daemon

Usage: camcordctl <command>

Commands:
  record         Start recording to disk
  record-stream  Start a stream-only session (no file written)
  stop           Stop the current recording
  save           Mux the stopped recording into the output directory
  snapshot       Take a single photo (photo mode only)
  quit           Shut the daemon down
  status         Print the current daemon status
  watch          Stream live status over the WebSocket endpoint
  diagnose       Check the capture environment (ffmpeg, devices, output dir)
  update         Check for a newer release; 'update install' installs it
  version        Print version
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "record":
		sendCommand(ipc.CmdRecord)
	case "record-stream":
		sendCommand(ipc.CmdRecordStream)
	case "stop":
		sendCommand(ipc.CmdStop)
	case "save":
		sendCommand(ipc.CmdSave)
	case "snapshot":
		sendCommand(ipc.CmdSnapshot)
	case "quit":
		sendCommand(ipc.CmdQuit)
	case "status":
		printStatus()
	case "watch":
		watchStatus()
	case "diagnose":
		diagnose()
	case "update":
		install := len(os.Args) > 2 && os.Args[2] == "install"
		checkUpdate(install)
	case "version":
		fmt.Println("camcordctl " + Version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
	}
}

func sendCommand(cmd ipc.Command) {
	if err := ipc.WriteCommand(cmd); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Printf("sent: %s\n", cmd)
}

func printStatus() {
	status, err := ipc.ReadStatus()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "no status file; is the daemon running?")
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	age := time.Since(status.Timestamp).Round(time.Second)
	if age > 5*time.Second {
		fmt.Fprintf(os.Stderr, "warning: status is %s old; the daemon may not be running\n", age)
	}
	printSnapshot(status)
}

func printSnapshot(s *ipc.StatusSnapshot) {
	fmt.Printf("status:    %s\n", s.Status)
	fmt.Printf("mode:      %s\n", s.Mode)
	fmt.Printf("device:    %s\n", s.Device)
	fmt.Printf("ready:     %v\n", s.Ready)
	if s.StreamTime >= 0 {
		fmt.Printf("stream:    %.2fs\n", s.StreamTime)
	}
	if s.RecordingTime >= 0 {
		fmt.Printf("recording: %.2fs\n", s.RecordingTime)
	}
	fmt.Printf("frames:    %d\n", s.FrameCount)
	if s.LastClip != "" {
		fmt.Printf("last clip: %s\n", s.LastClip)
	}
	if s.LastAction != "" {
		fmt.Printf("last cmd:  %s\n", s.LastAction)
	}
	if s.LastError != "" {
		fmt.Printf("last err:  %s\n", s.LastError)
	}
}

// diagnose checks the capture environment end to end and prints what a user
// needs to fix before the daemon will run.
func diagnose() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	ffmpegVersion, err := validation.FFmpegVersionString()
	if err != nil {
		ffmpegVersion = ""
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	devices, err := device.NewEnumerator(diaglog.NewNoOp()).List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: device enumeration failed:", err)
	}

	result := validation.CheckCaptureHealth(ffmpegVersion, len(devices), cfg.OutputDir)
	fmt.Println(result.Message)

	for _, d := range devices {
		fmt.Printf("  device: %s (api=%s)\n", d.Name(), d.CameraAPI())
	}

	if !result.OK {
		fmt.Println()
		fmt.Println("Issues:")
		for _, issue := range result.Issues {
			fmt.Printf("  - %s\n", issue)
		}
		fmt.Println()
		fmt.Println("Suggested fixes:")
		for _, fix := range result.Fixes {
			fmt.Printf("  - %s\n", fix)
		}
		os.Exit(1)
	}
}

// checkUpdate reports whether a newer release exists and optionally installs
// it next to the current executable.
func checkUpdate(install bool) {
	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	checker := autoupdate.NewUpdateChecker("camcord", "camcord", Version, filepath.Dir(exe))
	available, release, err := checker.IsUpdateAvailable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if !available {
		fmt.Printf("camcordctl %s is up to date\n", Version)
		return
	}

	fmt.Printf("update available: %s (current %s)\n", release.TagName, Version)
	if !install {
		fmt.Println("run 'camcordctl update install' to install it")
		return
	}

	fmt.Println("downloading and installing...")
	if err := checker.DownloadAndInstall(release); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println("installed; restart the daemon to pick up the new version")
}

// watchStatus subscribes to the daemon's WebSocket status endpoint and prints
// one line per snapshot until interrupted.
func watchStatus() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if cfg.StatusWS == "" {
		fmt.Fprintln(os.Stderr, "status_ws is not configured; set it in capture.json or pass --status-ws to the daemon")
		os.Exit(1)
	}

	url := "ws://" + cfg.StatusWS + "/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to %s: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("watching %s (Ctrl-C to stop)\n", url)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintln(os.Stderr, "connection closed:", err)
			return
		}
		var snap ipc.StatusSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		line := fmt.Sprintf("%s  %-11s frames=%d", snap.Timestamp.Format("15:04:05"), snap.Status, snap.FrameCount)
		if snap.RecordingTime >= 0 {
			line += fmt.Sprintf("  rec=%.2fs", snap.RecordingTime)
		}
		if snap.LastError != "" {
			line += "  err=" + snap.LastError
		}
		fmt.Println(line)
	}
}
