package security

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image/png"
	"log"
	"strings"
	"sync"
	"time"

	"biolink/db"
	"biolink/internal/auth"
	"biolink/models"

	"github.com/pquerna/otp/totp"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"
)

const (
	backupCodeCount = 10
	qrSize          = 200
)

var (
	ErrNoPendingSecret   = errors.New("no pending two-factor secret")
	ErrSecretMismatch    = errors.New("secret does not match the issued secret")
	ErrInvalidCode       = errors.New("invalid verification code")
	ErrNotEnabled        = errors.New("two-factor authentication is not enabled")
	ErrIncorrectPassword = errors.New("incorrect password")
)

// SettingsWriter mirrors the 2FA flag into the user's settings document.
type SettingsWriter interface {
	SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error
}

// EventRecorder stores account events.
type EventRecorder interface {
	CreateOne(ctx context.Context, eventType models.EEventLogType, userID string) error
}

// Setup is returned by Generate.
type Setup struct {
	Secret         string   `json:"secret"`
	QRCodeURL      string   `json:"qr_code_url"`
	BackupCodes    []string `json:"backup_codes"`
	Message        string   `json:"message,omitempty"`
	AlreadyEnabled bool     `json:"already_enabled"`
}

type TwoFactorService struct {
	repo      db.TwoFactorRepository
	users     db.UserRepository
	settings  SettingsWriter
	dbManager *db.DBManager
	events    EventRecorder
	issuer    string
	ttl       time.Duration
	now       func() time.Time

	// mu serializes the read-modify-write of a user's 2FA row.
	mu sync.Mutex

	cron *cron.Cron
}

func NewTwoFactorService(repo db.TwoFactorRepository, users db.UserRepository, settings SettingsWriter, dbManager *db.DBManager, events EventRecorder, issuer string, ttl time.Duration) *TwoFactorService {
	return &TwoFactorService{
		repo:      repo,
		users:     users,
		settings:  settings,
		dbManager: dbManager,
		events:    events,
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *TwoFactorService) load(ctx context.Context, userID string) (*models.TwoFactor, error) {
	tf, err := s.repo.FindByUserID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return &models.TwoFactor{UserID: userID}, nil
	}
	return tf, err
}

// Generate issues a new pending secret and backup codes. The active secret,
// if any, keeps working until a code for the new one is verified.
func (s *TwoFactorService) Generate(ctx context.Context, userID string) (*Setup, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tf, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: user.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}

	codes, hashes, err := newBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	tf.PendingSecret = key.Secret()
	tf.PendingBackupCodes = hashes
	tf.PendingIssuedAt = &issuedAt
	if err := s.dbManager.SaveTwoFactor(s.repo, ctx, tf); err != nil {
		return nil, err
	}
	s.record(ctx, models.TwoFactorSecretIssued, userID)

	setup := &Setup{
		Secret:         key.Secret(),
		QRCodeURL:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		BackupCodes:    codes,
		AlreadyEnabled: tf.Enabled,
	}
	if tf.Enabled {
		setup.Message = "Two-factor authentication is already enabled. Verifying a code for this secret replaces your current authenticator."
	}
	return setup, nil
}

// Verify promotes the pending secret once code matches it. secret, when
// given, must be the secret that was issued.
func (s *TwoFactorService) Verify(ctx context.Context, userID, code, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if tf.PendingSecret == "" {
		return ErrNoPendingSecret
	}
	if secret != "" && secret != tf.PendingSecret {
		return ErrSecretMismatch
	}
	if !totp.Validate(strings.TrimSpace(code), tf.PendingSecret) {
		return ErrInvalidCode
	}

	now := s.now()
	hashes := tf.PendingBackupCodes
	tf.Secret = tf.PendingSecret
	tf.Enabled = true
	tf.EnabledAt = &now
	tf.PendingSecret = ""
	tf.PendingBackupCodes = nil
	tf.PendingIssuedAt = nil

	if err := s.dbManager.SaveTwoFactor(s.repo, ctx, tf); err != nil {
		return err
	}
	if err := s.dbManager.ReplaceBackupCodes(s.repo, ctx, userID, hashes); err != nil {
		return err
	}
	if err := s.settings.SetTwoFactorEnabled(ctx, userID, true); err != nil {
		log.Printf("Failed to mirror 2FA flag for user %s: %v", userID, err)
	}
	s.record(ctx, models.TwoFactorEnabled, userID)
	return nil
}

// Disable turns 2FA off after checking the account password.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if !auth.CheckPassword(user, password) {
		return ErrIncorrectPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tf, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !tf.Enabled {
		return ErrNotEnabled
	}

	*tf = models.TwoFactor{UserID: userID}
	if err := s.dbManager.SaveTwoFactor(s.repo, ctx, tf); err != nil {
		return err
	}
	if err := s.dbManager.ReplaceBackupCodes(s.repo, ctx, userID, nil); err != nil {
		return err
	}
	if err := s.settings.SetTwoFactorEnabled(ctx, userID, false); err != nil {
		log.Printf("Failed to mirror 2FA flag for user %s: %v", userID, err)
	}
	s.record(ctx, models.TwoFactorDisabled, userID)
	return nil
}

func (s *TwoFactorService) IsEnabled(ctx context.Context, userID string) (bool, error) {
	tf, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	return tf.Enabled, nil
}

// VerifyLoginCode accepts a current TOTP code or an unused backup code.
// A backup code is consumed on success.
func (s *TwoFactorService) VerifyLoginCode(ctx context.Context, userID, code string) (bool, error) {
	tf, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	if !tf.Enabled {
		return false, ErrNotEnabled
	}
	if totp.Validate(code, tf.Secret) {
		return true, nil
	}

	unused, err := s.repo.FindUnusedBackupCodes(ctx, userID)
	if err != nil {
		return false, err
	}
	normalized := normalizeBackupCode(code)
	for _, bc := range unused {
		if bcrypt.CompareHashAndPassword([]byte(bc.CodeHash), []byte(normalized)) != nil {
			continue
		}
		if err := s.dbManager.MarkBackupCodeUsed(s.repo, ctx, bc.ID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		s.record(ctx, models.BackupCodeUsed, userID)
		return true, nil
	}
	return false, nil
}

// PurgeExpired clears pending secrets older than the configured TTL.
func (s *TwoFactorService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.dbManager.ClearPendingBefore(s.repo, ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("Purged %d expired pending 2FA secret(s)", n)
		s.record(ctx, models.PendingSecretsPurged, "")
	}
	return n, nil
}

// StartSweeper runs PurgeExpired on schedule until StopSweeper is called.
func (s *TwoFactorService) StartSweeper(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.PurgeExpired(context.Background()); err != nil {
			log.Printf("Pending secret sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule pending secret sweep: %w", err)
	}
	s.cron = c
	c.Start()
	log.Printf("Pending secret sweep scheduled (%s)", schedule)
	return nil
}

// StopSweeper stops the scheduler and waits for a running sweep.
func (s *TwoFactorService) StopSweeper() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *TwoFactorService) record(ctx context.Context, eventType models.EEventLogType, userID string) {
	if s.events == nil {
		return
	}
	if err := s.events.CreateOne(ctx, eventType, userID); err != nil {
		log.Printf("Error recording %s: %v", eventType, err)
	}
}

// newBackupCodes returns n codes formatted xxxx-xxxx and their bcrypt hashes.
func newBackupCodes(n int) ([]string, []string, error) {
	codes := make([]string, n)
	hashes := make([]string, n)
	raw := make([]byte, 4)
	for i := range codes {
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, fmt.Errorf("generate backup code: %w", err)
		}
		h := hex.EncodeToString(raw)
		codes[i] = h[:4] + "-" + h[4:]
		hash, err := bcrypt.GenerateFromPassword([]byte(h), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, fmt.Errorf("hash backup code: %w", err)
		}
		hashes[i] = string(hash)
	}
	return codes, hashes, nil
}

func normalizeBackupCode(code string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}
