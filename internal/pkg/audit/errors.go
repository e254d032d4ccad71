package audit

import (
	"fmt"
)

// The shared browser could not be started. Fatal for the whole batch.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch browser: %v", e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// One audit attempt of one target failed. Recovered by retry or skip.
type AuditError struct {
	Target    string
	Transient bool
	Err       error
}

func (e *AuditError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("audit %s (%s): %v", e.Target, kind, e.Err)
}

func (e *AuditError) Unwrap() error {
	return e.Err
}

// The artifacts of a successful audit could not be persisted.
type WriteError struct {
	Target string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write artifacts for %s: %v", e.Target, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
