package security

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"biolink/db"
	"biolink/models"
	"biolink/tests/testutils"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSettings struct {
	mu    sync.Mutex
	flags []bool
}

func (r *recordingSettings) SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags = append(r.flags, enabled)
	return nil
}

func (r *recordingSettings) last() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.flags) == 0 {
		return false, false
	}
	return r.flags[len(r.flags)-1], true
}

type recordingEvents struct {
	mu    sync.Mutex
	types []models.EEventLogType
}

func (r *recordingEvents) CreateOne(ctx context.Context, eventType models.EEventLogType, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	return nil
}

func (r *recordingEvents) has(t models.EEventLogType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.types {
		if got == t {
			return true
		}
	}
	return false
}

type fixture struct {
	svc      *TwoFactorService
	repo     db.TwoFactorRepository
	user     *models.User
	settings *recordingSettings
	events   *recordingEvents
}

func newFixture(t *testing.T) *fixture {
	factory, cleanup := testutils.SetupTestRepositoryFactory(t)
	t.Cleanup(cleanup)

	users := factory.NewUserRepository()
	repo := factory.NewTwoFactorRepository()
	user := testutils.CreateTestUser(t, users, "alice")
	settings := &recordingSettings{}
	events := &recordingEvents{}

	svc := NewTwoFactorService(repo, users, settings, testutils.SetupTestDBManager(t), events, "biolink-test", time.Hour)
	return &fixture{svc: svc, repo: repo, user: user, settings: settings, events: events}
}

func (f *fixture) enroll(t *testing.T) *Setup {
	ctx := context.Background()
	setup, err := f.svc.Generate(ctx, f.user.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.Verify(ctx, f.user.ID, code, setup.Secret))
	return setup
}

func TestGenerateIssuesPendingSecret(t *testing.T) {
	f := newFixture(t)

	setup, err := f.svc.Generate(context.Background(), f.user.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, setup.Secret)
	assert.True(t, strings.HasPrefix(setup.QRCodeURL, "data:image/png;base64,"))
	assert.False(t, setup.AlreadyEnabled)
	require.Len(t, setup.BackupCodes, backupCodeCount)
	pattern := regexp.MustCompile(`^[0-9a-f]{4}-[0-9a-f]{4}$`)
	for _, c := range setup.BackupCodes {
		assert.Regexp(t, pattern, c)
	}

	tf, err := f.repo.FindByUserID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, setup.Secret, tf.PendingSecret)
	assert.False(t, tf.Enabled)
	assert.Len(t, tf.PendingBackupCodes, backupCodeCount)
	assert.True(t, f.events.has(models.TwoFactorSecretIssued))
}

func TestVerifyEnablesTwoFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	setup := f.enroll(t)

	tf, err := f.repo.FindByUserID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, tf.Enabled)
	assert.Equal(t, setup.Secret, tf.Secret)
	assert.Empty(t, tf.PendingSecret)

	codes, err := f.repo.FindUnusedBackupCodes(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, codes, backupCodeCount)

	flag, ok := f.settings.last()
	require.True(t, ok)
	assert.True(t, flag)
	assert.True(t, f.events.has(models.TwoFactorEnabled))

	enabled, err := f.svc.IsEnabled(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestVerifyRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Verify(ctx, f.user.ID, "123456", "")
	assert.ErrorIs(t, err, ErrNoPendingSecret)

	setup, err := f.svc.Generate(ctx, f.user.ID)
	require.NoError(t, err)

	err = f.svc.Verify(ctx, f.user.ID, "000000", "SOMEOTHERSECRET")
	assert.ErrorIs(t, err, ErrSecretMismatch)

	code, err := totp.GenerateCode(setup.Secret, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	err = f.svc.Verify(ctx, f.user.ID, code, setup.Secret)
	assert.ErrorIs(t, err, ErrInvalidCode)

	enabled, err := f.svc.IsEnabled(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, enabled)
	_, touched := f.settings.last()
	assert.False(t, touched)
}

func TestGenerateWhileEnabledKeepsActiveSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.enroll(t)

	second, err := f.svc.Generate(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyEnabled)
	assert.NotEmpty(t, second.Message)
	assert.NotEqual(t, first.Secret, second.Secret)

	code, err := totp.GenerateCode(first.Secret, time.Now())
	require.NoError(t, err)
	ok, err := f.svc.VerifyLoginCode(ctx, f.user.ID, code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBackupCodeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	setup := f.enroll(t)

	ok, err := f.svc.VerifyLoginCode(ctx, f.user.ID, strings.ToUpper(setup.BackupCodes[3]))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.events.has(models.BackupCodeUsed))

	ok, err = f.svc.VerifyLoginCode(ctx, f.user.ID, setup.BackupCodes[3])
	require.NoError(t, err)
	assert.False(t, ok)

	codes, err := f.repo.FindUnusedBackupCodes(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, codes, backupCodeCount-1)
}

func TestVerifyLoginCodeWhenDisabled(t *testing.T) {
	f := newFixture(t)

	ok, err := f.svc.VerifyLoginCode(context.Background(), f.user.ID, "123456")
	assert.ErrorIs(t, err, ErrNotEnabled)
	assert.False(t, ok)
}

func TestDisable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Disable(ctx, f.user.ID, testutils.TestPassword), ErrNotEnabled)

	f.enroll(t)
	assert.ErrorIs(t, f.svc.Disable(ctx, f.user.ID, "wrong password"), ErrIncorrectPassword)

	require.NoError(t, f.svc.Disable(ctx, f.user.ID, testutils.TestPassword))

	enabled, err := f.svc.IsEnabled(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, enabled)

	codes, err := f.repo.FindUnusedBackupCodes(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, codes)

	flag, _ := f.settings.last()
	assert.False(t, flag)
	assert.True(t, f.events.has(models.TwoFactorDisabled))
}

func TestPurgeExpiredClearsStalePendingSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, f.user.ID)
	require.NoError(t, err)

	n, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	err = f.svc.Verify(ctx, f.user.ID, "123456", "")
	assert.ErrorIs(t, err, ErrNoPendingSecret)
}

func TestSweeperSchedule(t *testing.T) {
	f := newFixture(t)

	assert.Error(t, f.svc.StartSweeper("not a schedule"))
	require.NoError(t, f.svc.StartSweeper("@every 1h"))
	f.svc.StopSweeper()
}

func TestDisableDuringGenerateStaysDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.svc.Generate(ctx, f.user.ID)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, f.svc.Disable(ctx, f.user.ID, testutils.TestPassword))
	}()
	wg.Wait()

	enabled, err := f.svc.IsEnabled(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, enabled)
	flag, _ := f.settings.last()
	assert.False(t, flag)
}
