package validation

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ValidationResult contains the result of a capture environment check
type ValidationResult struct {
	OK       bool
	Message  string
	Issues   []string
	Warnings []string
	Fixes    []string
}

// FFmpegVersionString runs `ffmpeg -version` and returns the first line.
func FFmpegVersionString() (string, error) {
	out, err := exec.Command("ffmpeg", "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	line := strings.SplitN(string(out), "\n", 2)[0]
	return strings.TrimSpace(line), nil
}

// ValidateFFmpegVersion checks if the ffmpeg build meets minimum requirements
func ValidateFFmpegVersion(versionString string) *ValidationResult {
	result := &ValidationResult{OK: true}

	// Parse version string like "ffmpeg version 6.1.1" or "ffmpeg version n7.0"
	re := regexp.MustCompile(`version\s+n?(\d+)\.(\d+)`)
	matches := re.FindStringSubmatch(versionString)

	if len(matches) < 3 {
		result.OK = false
		result.Message = fmt.Sprintf("Could not parse ffmpeg version: %s", versionString)
		result.Issues = append(result.Issues, "Invalid version format")
		result.Fixes = append(result.Fixes, "Install ffmpeg 4.0 or later from https://ffmpeg.org")
		return result
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])

	// Minimum required: ffmpeg 4.0 (stable device capture across v4l2/avfoundation/dshow)
	if major < 4 {
		result.OK = false
		result.Issues = append(result.Issues, fmt.Sprintf("ffmpeg version %d.%d is too old (requires 4.0+)", major, minor))
		result.Fixes = append(result.Fixes, "Update ffmpeg to version 4.0 or later from https://ffmpeg.org")
		result.Message = fmt.Sprintf("ffmpeg %d.%d requires update to 4.0+", major, minor)
		return result
	}

	result.Message = fmt.Sprintf("ffmpeg %d.%d is compatible (requires 4.0+)", major, minor)
	return result
}

// ValidateOutputDir checks that the clip output directory exists and is writable
func ValidateOutputDir(dir string) *ValidationResult {
	result := &ValidationResult{OK: true}

	if dir == "" {
		result.OK = false
		result.Issues = append(result.Issues, "No output directory configured")
		result.Fixes = append(result.Fixes, "Set output_dir in ~/.config/camcord/capture.json")
		result.Message = "No output directory"
		return result
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		result.OK = false
		result.Issues = append(result.Issues, fmt.Sprintf("Cannot create output directory %s: %v", dir, err))
		result.Fixes = append(result.Fixes, "Check permissions on the parent directory or choose another output_dir")
		result.Message = "Output directory is not usable"
		return result
	}

	probe := filepath.Join(dir, ".camcord-write-test")
	if err := os.WriteFile(probe, []byte("test"), 0644); err != nil {
		result.OK = false
		result.Issues = append(result.Issues, fmt.Sprintf("Output directory %s is not writable: %v", dir, err))
		result.Fixes = append(result.Fixes, "Fix directory permissions or choose another output_dir")
		result.Message = "Output directory is not writable"
		return result
	}
	_ = os.Remove(probe)

	result.Message = fmt.Sprintf("Output directory %s is writable", dir)
	return result
}

// ValidateDeviceCount checks that at least one capture device was enumerated
func ValidateDeviceCount(count int) *ValidationResult {
	result := &ValidationResult{OK: true}

	if count == 0 {
		result.OK = false
		result.Issues = append(result.Issues, "No capture devices detected")
		result.Fixes = append(result.Fixes, "Connect a camera and check it appears (Linux: ls /dev/video*)")
		result.Fixes = append(result.Fixes, "On Linux, ensure your user is in the 'video' group")
		result.Message = "No capture devices"
		return result
	}

	result.Message = fmt.Sprintf("%d capture device(s) detected", count)
	return result
}

// SuggestedFixes returns user-friendly troubleshooting for common capture errors
func SuggestedFixes(errorMsg string) []string {
	var fixes []string

	switch {
	case strings.Contains(errorMsg, "Device or resource busy"):
		fixes = append(fixes, "The camera is held by another process")
		fixes = append(fixes, "")
		fixes = append(fixes, "Steps to fix:")
		fixes = append(fixes, "  1. Close other applications using the camera (browser tabs included)")
		fixes = append(fixes, "  2. Linux: fuser /dev/video0 shows the holder's PID")
		fixes = append(fixes, "  3. Retry after the device is released")

	case strings.Contains(errorMsg, "Permission denied"):
		fixes = append(fixes, "No permission to open the capture device")
		fixes = append(fixes, "")
		fixes = append(fixes, "Steps to fix:")
		fixes = append(fixes, "  1. Linux: add your user to the 'video' group and re-login")
		fixes = append(fixes, "  2. macOS: grant Camera access in System Settings > Privacy & Security")
		fixes = append(fixes, "  3. Windows: check Camera privacy settings")

	case strings.Contains(errorMsg, "No such file or directory"), strings.Contains(errorMsg, "not found"):
		fixes = append(fixes, "The configured capture device does not exist")
		fixes = append(fixes, "")
		fixes = append(fixes, "Steps to fix:")
		fixes = append(fixes, "  1. Run 'camcord --list-devices' to see what is available")
		fixes = append(fixes, "  2. Update device/device_index in ~/.config/camcord/capture.json")

	default:
		fixes = append(fixes, fmt.Sprintf("Error: %s", errorMsg))
		fixes = append(fixes, "Run with CAMCORD_DEBUG_CAPTURE=true and export the diagnostic log for details")
	}

	return fixes
}

// CheckCaptureHealth performs a comprehensive capture environment check
func CheckCaptureHealth(ffmpegVersion string, deviceCount int, outputDir string) *ValidationResult {
	result := &ValidationResult{OK: true}
	var messages []string

	for _, check := range []*ValidationResult{
		ValidateFFmpegVersion(ffmpegVersion),
		ValidateDeviceCount(deviceCount),
		ValidateOutputDir(outputDir),
	} {
		if !check.OK {
			result.OK = false
			result.Issues = append(result.Issues, check.Issues...)
			result.Fixes = append(result.Fixes, check.Fixes...)
		}
		result.Warnings = append(result.Warnings, check.Warnings...)
		messages = append(messages, check.Message)
	}

	result.Message = strings.Join(messages, " | ")

	if result.OK {
		result.Message = "Capture health check passed: " + result.Message
	} else {
		result.Message = "Capture health check FAILED: " + result.Message
	}

	return result
}
