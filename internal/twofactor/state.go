package twofactor

import (
	"errors"
	"fmt"
)

type State int

const (
	Idle State = iota
	AwaitingAppDownloadAck
	SecretIssued
	AwaitingVerification
	Enrolled
	Disabling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingAppDownloadAck:
		return "awaiting app download"
	case SecretIssued:
		return "secret issued"
	case AwaitingVerification:
		return "awaiting verification"
	case Enrolled:
		return "enrolled"
	case Disabling:
		return "disabling"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Step is the 1-based wizard step of an enrollment state, or 0.
func (s State) Step() int {
	switch s {
	case AwaitingAppDownloadAck:
		return 1
	case SecretIssued:
		return 2
	case AwaitingVerification:
		return 3
	}
	return 0
}

func (s State) enrolling() bool { return s.Step() > 0 }

// Session is the data of one enrollment attempt.
type Session struct {
	Secret         string
	QRCodeURL      string
	BackupCodes    []string
	Notice         string
	AlreadyEnabled bool
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.BackupCodes = append([]string(nil), s.BackupCodes...)
	return &out
}

var (
	ErrInvalidCodeFormat = errors.New("verification code must be exactly 6 digits")
	ErrPasswordTooShort  = errors.New("password must be at least 6 characters")
	ErrBusy              = errors.New("another two-factor request is in progress")
	ErrSessionDisposed   = errors.New("enrollment session was cancelled")
	ErrInvalidTransition = errors.New("operation not allowed in current state")
)

type ErrorKind int

const (
	GenerateFailed ErrorKind = iota + 1
	VerificationFailed
	DisableFailed
)

func (k ErrorKind) String() string {
	switch k {
	case GenerateFailed:
		return "generate failed"
	case VerificationFailed:
		return "verification failed"
	case DisableFailed:
		return "disable failed"
	}
	return "unknown"
}

// Error is a failed server call. KeepOpen asks the caller to leave the
// enrollment view open so the user can retry.
type Error struct {
	Kind     ErrorKind
	Message  string
	KeepOpen bool
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("two-factor: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ReloadError means enrollment succeeded but refreshing the settings did not.
type ReloadError struct {
	Err error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("two-factor enabled, settings reload failed: %v", e.Err)
}

func (e *ReloadError) Unwrap() error { return e.Err }
