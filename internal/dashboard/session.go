// Package dashboard assembles the client-side components of one logged-in
// dashboard session around a shared API client.
package dashboard

import (
	"context"

	"biolink/internal/apiclient"
	"biolink/internal/config"
	"biolink/internal/settingssync"
	"biolink/internal/twofactor"
	"biolink/internal/upload"
)

var (
	_ settingssync.SettingsAPI = (*apiclient.Client)(nil)
	_ twofactor.TwoFactorAPI   = (*apiclient.Client)(nil)
	_ upload.UploadAPI         = (*apiclient.Client)(nil)
	_ twofactor.SettingsSink   = (*settingssync.Engine)(nil)
	_ upload.DraftSink         = (*settingssync.Engine)(nil)
)

type Session struct {
	Client    *apiclient.Client
	Settings  *settingssync.Engine
	TwoFactor *twofactor.Machine
	Uploads   *upload.Gateway
}

// Open loads the user's settings and builds the enrollment machine from the
// stored 2FA flag. cfg.Token must already hold a valid token.
func Open(ctx context.Context, cfg *config.ClientConfig) (*Session, error) {
	return OpenWithClient(ctx, apiclient.NewFromConfig(cfg), cfg)
}

func OpenWithClient(ctx context.Context, client *apiclient.Client, cfg *config.ClientConfig) (*Session, error) {
	engine := settingssync.NewEngine(client, settingssync.WithValidationDebounce(cfg.ValidationDebounce.Duration))
	values, err := engine.Load(ctx)
	if err != nil {
		engine.Close()
		return nil, err
	}
	enabled, _ := values["twoFactorEnabled"].(bool)

	return &Session{
		Client:    client,
		Settings:  engine,
		TwoFactor: twofactor.NewMachine(client, engine, enabled, twofactor.WithKeepOpenOnError(cfg.KeepOpenOnError)),
		Uploads:   upload.NewGateway(client, engine),
	}, nil
}

// Login exchanges credentials for a token and opens a session with it.
func Login(ctx context.Context, cfg *config.ClientConfig, username, password, code string) (*Session, error) {
	client := apiclient.NewFromConfig(cfg)
	if _, err := client.Login(ctx, username, password, code); err != nil {
		return nil, err
	}
	return OpenWithClient(ctx, client, cfg)
}

// Close stops pending validation timers and logs out. The logout is best
// effort; its error is returned for callers that care.
func (s *Session) Close(ctx context.Context) error {
	s.Settings.Close()
	return s.Client.Logout(ctx)
}
