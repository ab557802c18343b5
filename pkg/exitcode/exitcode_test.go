/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package exitcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeConstants(t *testing.T) {
	codes := map[string]int{
		"Success":             Success,
		"GeneralError":        GeneralError,
		"ConfigError":         ConfigError,
		"UsageError":          UsageError,
		"FileSystemError":     FileSystemError,
		"FindingsAtThreshold": FindingsAtThreshold,
	}
	seen := map[int]string{}
	for name, code := range codes {
		if other, dup := seen[code]; dup {
			t.Errorf("%s and %s share exit code %d", name, other, code)
		}
		seen[code] = name
	}
	if Success != 0 {
		t.Errorf("Success = %v, expected 0", Success)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{ConfigError, "Configuration error"},
		{UsageError, "Usage error"},
		{FileSystemError, "File system error"},
		{FindingsAtThreshold, "Findings at or above threshold"},
		{99, "Unknown error"},
		{-1, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := String(tt.code); result != tt.expected {
				t.Errorf("String(%d) = %q, expected %q", tt.code, result, tt.expected)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(ConfigError, nil) != nil {
		t.Error("Wrap(nil) should stay nil")
	}

	base := errors.New("bad config")
	err := fmt.Errorf("loading: %w", Wrap(ConfigError, base))

	var coded *Error
	if !errors.As(err, &coded) {
		t.Fatal("expected *Error in chain")
	}
	if coded.Code != ConfigError {
		t.Errorf("Code = %d, expected %d", coded.Code, ConfigError)
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should unwrap to the original")
	}
	if (&Error{Code: FindingsAtThreshold}).Error() != "Findings at or above threshold" {
		t.Error("Error without cause should describe the code")
	}
}
