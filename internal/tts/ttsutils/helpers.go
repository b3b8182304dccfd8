// Package ttsutils provides file and path utility functions shared by the
// synthesis client: directory provisioning, voice clip filtering, output
// naming and human-readable formatting for logs.
package ttsutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Common directory and path constants.
const (
	defaultDirPermissions  = 0o750
	invalidCharReplacement = "_"
	voiceSampleExt         = ".wav"
	candidateFileFormat    = "%s_%d" + voiceSampleExt
)

// Time and size formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
)

// Error message and format string constants.
const (
	errFmtFailedToCreateDir = "failed to create directory %s: %w"
	errFmtFailedToStatDir   = "failed to stat directory %s: %w"
	errFmtNotDirectory      = "%w: %s"
)

// ErrNotDirectory is returned when a path that must be a directory is something else.
var ErrNotDirectory = errors.New("path exists and is not a directory")

// EnsureDir ensures a directory exists at the given path, creating it and its
// parents if it doesn't. Calling it again on an existing directory is a no-op.
func EnsureDir(path string) error {
	info, statErr := os.Stat(path)

	switch {
	case statErr == nil:
		if !info.IsDir() {
			return fmt.Errorf(errFmtNotDirectory, ErrNotDirectory, path)
		}

		return nil
	case os.IsNotExist(statErr):
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}

		return nil
	default:
		return fmt.Errorf(errFmtFailedToStatDir, path, statErr)
	}
}

// IsVoiceSample reports whether filename carries the reference clip extension.
func IsVoiceSample(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), voiceSampleExt)
}

// CandidateFileName returns the file name for candidate index of a run.
func CandidateFileName(runID string, index int) string {
	return fmt.Sprintf(candidateFileFormat, runID, index)
}

// CandidateIndex recovers the index from a file name built by
// CandidateFileName for runID.
func CandidateIndex(runID, fileName string) (int, bool) {
	rest, found := strings.CutPrefix(fileName, runID+"_")
	if !found {
		return 0, false
	}

	digits, found := strings.CutSuffix(rest, voiceSampleExt)
	if !found {
		return 0, false
	}

	index, err := strconv.Atoi(digits)
	if err != nil || index < 0 {
		return 0, false
	}

	return index, true
}

// IsSafeName reports whether name can be used as a single path element
// without escaping its parent directory.
func IsSafeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	return SanitizeFilename(name) == name
}

// FormatDuration formats a duration in a human-readable string (e.g., "1h 15m", "5m
// 30.5s", "45.2s").
func FormatDuration(duration time.Duration) string {
	seconds := duration.Seconds()
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// FormatFileSize formats a file size with binary units (e.g., "1.2 GiB", "500 B").
func FormatFileSize(bytes int64) string {
	return humanize.IBytes(uint64(max(bytes, 0)))
}

// SanitizeFilename removes or replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		"\x00", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}
