package twofactor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"unicode/utf8"

	"biolink/internal/apiclient"
	"biolink/models"
)

const (
	minPasswordLength = 6
	codeLength        = 6

	generateFallbackMessage = "Failed to start two-factor setup"
	verifyFallbackMessage   = "Invalid verification code"
	disableFallbackMessage  = "Failed to disable two-factor authentication"
	reconfigureNotice       = "Two-factor authentication is already enabled. Scanning this code replaces your current authenticator."
)

// TwoFactorAPI is implemented by *apiclient.Client.
type TwoFactorAPI interface {
	GenerateTwoFactor(ctx context.Context) (*apiclient.TwoFactorSetup, error)
	VerifyTwoFactor(ctx context.Context, code, secret string) ([]string, error)
	DisableTwoFactor(ctx context.Context, password string) error
}

// SettingsSink is told about server-side changes to the 2FA flag.
// *settingssync.Engine implements it.
type SettingsSink interface {
	SetTwoFactorEnabled(enabled bool)
	Load(ctx context.Context) (models.Values, error)
}

// Machine drives the enrollment wizard and the disable flow for one user.
type Machine struct {
	api             TwoFactorAPI
	settings        SettingsSink
	keepOpenOnError bool

	mu      sync.Mutex
	state   State
	enabled bool
	session *Session
	// epoch changes whenever a session is dropped so late responses can be
	// recognised and discarded.
	epoch uint64
	// busy is set while a request is outstanding. Cancel does not clear it;
	// only the returning call does, even when its result is discarded.
	busy bool
}

type Option func(*Machine)

// WithKeepOpenOnError keeps the wizard open after a network failure during
// Start instead of closing it.
func WithKeepOpenOnError(keep bool) Option {
	return func(m *Machine) { m.keepOpenOnError = keep }
}

func NewMachine(api TwoFactorAPI, settings SettingsSink, enabled bool, opts ...Option) *Machine {
	m := &Machine{api: api, settings: settings, enabled: enabled}
	m.state = m.restState()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) restState() State {
	if m.enabled {
		return Enrolled
	}
	return Idle
}

// Start opens the wizard and asks the server for a new secret.
func (m *Machine) Start(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	if m.state != m.restState() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: start from %s", ErrInvalidTransition, m.state)
	}
	m.epoch++
	epoch := m.epoch
	m.state = AwaitingAppDownloadAck
	m.session = &Session{}
	m.busy = true
	m.mu.Unlock()

	setup, err := m.api.GenerateTwoFactor(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
	if epoch != m.epoch {
		return nil, ErrSessionDisposed
	}

	if err != nil {
		log.Printf("Failed to generate 2FA secret: %v", err)
		m.state = m.restState()
		m.session = nil
		return nil, &Error{
			Kind:     GenerateFailed,
			Message:  messageOr(err, generateFallbackMessage),
			KeepOpen: m.keepOpenOnError && apiclient.KindOf(err) == apiclient.KindNetwork,
			Err:      err,
		}
	}

	m.session = &Session{
		Secret:         setup.Secret,
		QRCodeURL:      setup.QRCodeURL,
		BackupCodes:    append([]string(nil), setup.BackupCodes...),
		AlreadyEnabled: setup.AlreadyEnabled,
	}
	if setup.AlreadyEnabled {
		m.session.Notice = setup.Message
		if m.session.Notice == "" {
			m.session.Notice = reconfigureNotice
		}
		m.state = SecretIssued
	}
	return m.session.clone(), nil
}

// AcknowledgeApp moves from step 1 to step 2 once the secret is known.
func (m *Machine) AcknowledgeApp() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrBusy
	}
	if m.state != AwaitingAppDownloadAck || m.session == nil || m.session.Secret == "" {
		return fmt.Errorf("%w: acknowledge app from %s", ErrInvalidTransition, m.state)
	}
	m.state = SecretIssued
	return nil
}

// ReviewSecret moves from step 2 to step 3.
func (m *Machine) ReviewSecret() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrBusy
	}
	if m.state != SecretIssued {
		return fmt.Errorf("%w: review secret from %s", ErrInvalidTransition, m.state)
	}
	m.state = AwaitingVerification
	return nil
}

// Back returns to the previous step. The issued secret is kept.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrBusy
	}
	switch m.state {
	case SecretIssued:
		m.state = AwaitingAppDownloadAck
	case AwaitingVerification:
		m.state = SecretIssued
	default:
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, m.state)
	}
	return nil
}

// SubmitCode verifies a TOTP code against the session's secret. The format is
// checked before anything else, so a malformed code never reaches the server.
// On success the session holds the backup codes and the settings are reloaded;
// a failed reload is reported as *ReloadError while the machine stays Enrolled.
func (m *Machine) SubmitCode(ctx context.Context, code string) (*Session, error) {
	if !validCode(code) {
		return nil, ErrInvalidCodeFormat
	}

	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	if m.state != AwaitingVerification {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: submit code from %s", ErrInvalidTransition, m.state)
	}
	epoch := m.epoch
	secret := m.session.Secret
	m.busy = true
	m.mu.Unlock()

	codes, err := m.api.VerifyTwoFactor(ctx, code, secret)

	m.mu.Lock()
	m.busy = false
	if epoch != m.epoch {
		m.mu.Unlock()
		return nil, ErrSessionDisposed
	}
	if err != nil {
		m.mu.Unlock()
		log.Printf("2FA verification rejected: %v", err)
		return nil, &Error{Kind: VerificationFailed, Message: messageOr(err, verifyFallbackMessage), Err: err}
	}
	m.enabled = true
	m.state = Enrolled
	if len(codes) > 0 {
		m.session.BackupCodes = append([]string(nil), codes...)
	}
	sess := m.session.clone()
	m.mu.Unlock()

	if m.settings == nil {
		return sess, nil
	}
	m.settings.SetTwoFactorEnabled(true)
	if _, err := m.settings.Load(ctx); err != nil {
		log.Printf("Failed to reload settings after enabling 2FA: %v", err)
		return sess, &ReloadError{Err: err}
	}
	return sess, nil
}

// Cancel abandons the wizard. Responses still in flight are discarded, and
// the machine stays busy until they arrive.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.enrolling() {
		if m.state == Enrolled {
			m.session = nil
		}
		return
	}
	m.epoch++
	m.session = nil
	m.state = m.restState()
}

// Dismiss closes the success view after enrollment.
func (m *Machine) Dismiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Enrolled {
		m.session = nil
	}
}

// RequestDisable turns 2FA off after the server checks the password.
func (m *Machine) RequestDisable(ctx context.Context, password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrPasswordTooShort
	}

	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.state != Enrolled || m.session != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: disable from %s", ErrInvalidTransition, m.state)
	}
	m.state = Disabling
	m.busy = true
	m.mu.Unlock()

	err := m.api.DisableTwoFactor(ctx, password)

	m.mu.Lock()
	m.busy = false
	if err != nil {
		m.state = Enrolled
		m.mu.Unlock()
		log.Printf("Failed to disable 2FA: %v", err)
		return &Error{Kind: DisableFailed, Message: messageOr(err, disableFallbackMessage), Err: err}
	}
	m.enabled = false
	m.state = Idle
	m.mu.Unlock()

	if m.settings != nil {
		m.settings.SetTwoFactorEnabled(false)
	}
	return nil
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Step() int {
	return m.State().Step()
}

// Session returns a copy of the current enrollment session, or nil.
func (m *Machine) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

func (m *Machine) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

func validCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func messageOr(err error, fallback string) string {
	if msg := apiclient.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}
