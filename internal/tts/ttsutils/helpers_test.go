package ttsutils_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/tortoise-client/internal/tts/ttsutils"
)

// TestEnsureDir verifies that a directory is created if it doesn't exist.
func TestEnsureDir(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	testPath := filepath.Join(tempDir, "new", "dir")

	err := ttsutils.EnsureDir(testPath)
	if err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	info, err := os.Stat(testPath)
	if err != nil || !info.IsDir() {
		t.Errorf("Directory %q was not created", testPath)
	}

	err = ttsutils.EnsureDir(testPath)
	if err != nil {
		t.Errorf("EnsureDir failed on existing directory: %v", err)
	}
}

func TestEnsureDir_RejectsFile(t *testing.T) {
	t.Parallel()

	filePath := filepath.Join(t.TempDir(), "occupied")

	err := os.WriteFile(filePath, []byte("x"), 0o600)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	err = ttsutils.EnsureDir(filePath)
	if !errors.Is(err, ttsutils.ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory, got %v", err)
	}
}

func TestIsVoiceSample(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		filename string
		isValid  bool
	}{
		{"clip.wav", true},
		{"CLIP.WAV", true},
		{"clip.mp3", false},
		{"clip.wav.txt", false},
		{"wav", false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.filename, func(t *testing.T) {
			t.Parallel()

			if result := ttsutils.IsVoiceSample(testCase.filename); result != testCase.isValid {
				t.Errorf("IsVoiceSample(%q) = %v; want %v", testCase.filename, result, testCase.isValid)
			}
		})
	}
}

func TestCandidateFileName(t *testing.T) {
	t.Parallel()

	result := ttsutils.CandidateFileName("run", 3)
	if result != "run_3.wav" {
		t.Errorf("Expected 'run_3.wav', got %q", result)
	}
}

func TestCandidateIndex(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		fileName string
		index    int
		ok       bool
	}{
		{"run_0.wav", 0, true},
		{"run_12.wav", 12, true},
		{"other_1.wav", 0, false},
		{"run_x.wav", 0, false},
		{"run_1.mp3", 0, false},
		{"run_-1.wav", 0, false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.fileName, func(t *testing.T) {
			t.Parallel()

			index, ok := ttsutils.CandidateIndex("run", testCase.fileName)
			if ok != testCase.ok || index != testCase.index {
				t.Errorf("CandidateIndex(%q) = %d, %v; want %d, %v", testCase.fileName, index, ok, testCase.index, testCase.ok)
			}
		})
	}
}

func TestIsSafeName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		isSafe bool
	}{
		{"alice", true},
		{"take-2_final", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../etc", false},
		{"a/b", false},
		{`a\b`, false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if result := ttsutils.IsSafeName(testCase.name); result != testCase.isSafe {
				t.Errorf("IsSafeName(%q) = %v; want %v", testCase.name, result, testCase.isSafe)
			}
		})
	}
}

// TestFormatDuration verifies duration formatting logic.
func TestFormatDuration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		expected string
		duration time.Duration
	}{
		{name: "less than a minute", duration: 30500 * time.Millisecond, expected: "30.5s"},
		{name: "exactly a minute", duration: time.Minute, expected: "1m 0.0s"},
		{name: "less than an hour", duration: 90500 * time.Millisecond, expected: "1m 30.5s"},
		{name: "exactly an hour", duration: time.Hour, expected: "1h 0m"},
		{name: "more than an hour", duration: time.Hour + 70*time.Second, expected: "1h 1m"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := ttsutils.FormatDuration(testCase.duration)
			if result != testCase.expected {
				t.Errorf("Expected %q, got %q", testCase.expected, result)
			}
		})
	}
}

// TestFormatFileSize verifies file size formatting logic.
func TestFormatFileSize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		expected string
		bytes    int64
	}{
		{name: "bytes", bytes: 500, expected: "500 B"},
		{name: "kilobytes", bytes: 2048, expected: "2.0 KiB"},
		{name: "megabytes", bytes: 1572864, expected: "1.5 MiB"},
		{name: "gigabytes", bytes: 2147483648, expected: "2.0 GiB"},
		{name: "negative", bytes: -1, expected: "0 B"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := ttsutils.FormatFileSize(testCase.bytes)
			if result != testCase.expected {
				t.Errorf("Expected %q, got %q", testCase.expected, result)
			}
		})
	}
}

// TestSanitizeFilename verifies that invalid characters are removed.
func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"no changes", "valid_filename.txt", "valid_filename.txt"},
		{"replaces invalid chars", "in<va>l:id\"/\\|?*name.txt", "in_va_l_id______name.txt"},
		{"replaces NUL byte", "take\x001.wav", "take_1.wav"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := ttsutils.SanitizeFilename(testCase.input)
			if result != testCase.expected {
				t.Errorf("Expected sanitized filename %q, got %q", testCase.expected, result)
			}
		})
	}
}
