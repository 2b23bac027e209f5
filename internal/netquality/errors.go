package netquality

import (
	"errors"
	"fmt"
)

// ConfigUnavailableMessage is the user-visible text for ConfigUnavailable.
const ConfigUnavailableMessage = "Unable to retrieve speedtest configuration or server list."

// ConfigError is returned by clients when measurement configuration or the
// server list cannot be retrieved.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return "speedtest config: " + e.Op
	}
	return fmt.Sprintf("speedtest config: %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type ErrorKind int

const (
	ConfigUnavailable ErrorKind = iota + 1
	MeasurementFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigUnavailable:
		return "config_unavailable"
	case MeasurementFailed:
		return "measurement_failed"
	}
	return "unknown"
}

// AssessmentError is the only error type Assess returns.
type AssessmentError struct {
	Kind ErrorKind
	Err  error
}

func (e *AssessmentError) Error() string {
	if e.Kind == ConfigUnavailable {
		return ConfigUnavailableMessage
	}
	if e.Err == nil || e.Err.Error() == "" {
		return "network measurement failed"
	}
	return e.Err.Error()
}

func (e *AssessmentError) Unwrap() error { return e.Err }

// KindOf reports the kind of an assessment error, or 0 when err is not one.
func KindOf(err error) ErrorKind {
	var ae *AssessmentError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

func classifyErr(step string, err error) *AssessmentError {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return &AssessmentError{Kind: ConfigUnavailable, Err: err}
	}
	return &AssessmentError{Kind: MeasurementFailed, Err: fmt.Errorf("%s: %w", step, err)}
}
