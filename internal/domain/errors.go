package domain

import (
	"fmt"
	"strings"
)

// ConfigurationError means the service cannot serve data because required upstream
// credentials are absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// UpstreamFetchError is returned by a SourceAdapter when its upstream call fails.
type UpstreamFetchError struct {
	Platform   Platform
	Message    string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	msg := fmt.Sprintf("%s upstream fetch failed", e.Platform)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// RangeError reports a lookback or date range that cannot be turned into a canonical range.
type RangeError struct {
	LookbackDays int
	Reason       string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range for lookback %d: %s", e.LookbackDays, e.Reason)
}
