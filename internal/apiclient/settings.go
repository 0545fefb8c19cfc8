package apiclient

import (
	"context"
	"errors"
	"net/http"

	"biolink/models"
)

type settingsResponse struct {
	Data *struct {
		Settings map[string]any `json:"settings"`
	} `json:"data"`
}

type saveResponse struct {
	Message string `json:"message"`
}

func (c *Client) settingsEndpoints() (get, save string) {
	if c.settingsPath == "/dashboard" {
		return "/dashboard", "/dashboard/settings"
	}
	return "/customization/settings", "/customization/settings"
}

// GetSettings fetches the user's settings in wire (snake_case) form.
func (c *Client) GetSettings(ctx context.Context) (map[string]any, error) {
	path, _ := c.settingsEndpoints()
	var resp settingsResponse
	if err := c.doJSON(ctx, "get settings", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.Settings == nil {
		return nil, &Error{Op: "get settings", Kind: KindMalformed, Err: errors.New("missing data.settings")}
	}
	return resp.Data.Settings, nil
}

// SaveSettings sends a complete settings object. The backend does not accept
// partial updates.
func (c *Client) SaveSettings(ctx context.Context, wire map[string]any) (string, error) {
	_, path := c.settingsEndpoints()
	var resp saveResponse
	if err := c.doJSON(ctx, "save settings", http.MethodPost, path, wire, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

type eventLogsResponse struct {
	Data []models.EventLog `json:"data"`
}

func (c *Client) EventLogs(ctx context.Context) ([]models.EventLog, error) {
	var resp eventLogsResponse
	if err := c.doJSON(ctx, "event logs", http.MethodGet, "/event-logs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
