package apiclient

import (
	"context"
	"net/http"
)

// TwoFactorSetup is the server's answer to a generate request.
type TwoFactorSetup struct {
	Secret         string   `json:"secret"`
	QRCodeURL      string   `json:"qr_code_url"`
	BackupCodes    []string `json:"backup_codes"`
	Message        string   `json:"message"`
	AlreadyEnabled bool     `json:"already_enabled"`
}

func (c *Client) GenerateTwoFactor(ctx context.Context) (*TwoFactorSetup, error) {
	var setup TwoFactorSetup
	if err := c.doJSON(ctx, "generate 2fa", http.MethodPost, "/auth/2fa/generate", nil, &setup); err != nil {
		return nil, err
	}
	return &setup, nil
}

type verifyResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// VerifyTwoFactor confirms the pending secret with a code from the
// authenticator app and returns the backup codes, if the server sent any.
func (c *Client) VerifyTwoFactor(ctx context.Context, code, secret string) ([]string, error) {
	body := map[string]string{"code": code, "secret": secret}
	var resp verifyResponse
	if err := c.doJSON(ctx, "verify 2fa", http.MethodPost, "/auth/2fa/verify", body, &resp); err != nil {
		return nil, err
	}
	return resp.BackupCodes, nil
}

func (c *Client) DisableTwoFactor(ctx context.Context, password string) error {
	body := map[string]string{"password": password}
	return c.doJSON(ctx, "disable 2fa", http.MethodPost, "/auth/2fa/disable", body, nil)
}
