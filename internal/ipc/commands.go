package ipc

import (
	"os"
	"path/filepath"
	"strings"
)

// Command represents user commands from the control CLI to the daemon
type Command string

const (
	CmdRecord       Command = "record"        // Start recording to disk
	CmdRecordStream Command = "record-stream" // Start a stream-only session (no writer)
	CmdStop         Command = "stop"          // Stop the current recording
	CmdSave         Command = "save"          // Mux the stopped recording to the output file
	CmdSnapshot     Command = "snapshot"      // Single photo (photo mode only)
	CmdQuit         Command = "quit"          // Shutdown daemon
)

// WriteCommand writes a command to ~/.cache/camcord/cmd.txt
func WriteCommand(cmd Command) error {
	cacheDir := filepath.Join(os.Getenv("HOME"), ".cache", "camcord")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return err
	}

	cmdPath := filepath.Join(cacheDir, "cmd.txt")
	return os.WriteFile(cmdPath, []byte(string(cmd)), 0644)
}

// ReadCommand reads and clears ~/.cache/camcord/cmd.txt
// Returns empty string if no command or file doesn't exist
func ReadCommand() (Command, error) {
	cmdPath := filepath.Join(os.Getenv("HOME"), ".cache", "camcord", "cmd.txt")

	// Read the command
	data, err := os.ReadFile(cmdPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil // No command pending
		}
		return "", err
	}

	// Clear the file immediately to prevent re-execution
	if err := os.WriteFile(cmdPath, []byte(""), 0644); err != nil {
		return "", err
	}

	// Parse and validate command
	cmd := Command(strings.TrimSpace(string(data)))

	// Validate it's a known command
	switch cmd {
	case CmdRecord, CmdRecordStream, CmdStop, CmdSave, CmdSnapshot, CmdQuit:
		return cmd, nil
	case "":
		return "", nil // Empty file
	default:
		// Invalid command - ignore it
		return "", nil
	}
}
