package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, opts...)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func TestGetSettings(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/customization/settings", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"settings": map[string]any{"accent_color": "#112233"}},
		})
	}, WithToken("tok"))

	settings, err := client.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "#112233", settings["accent_color"])
}

func TestGetSettings_DashboardPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dashboard", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"settings": map[string]any{}},
		})
	}, WithSettingsPath("/dashboard"))

	_, err := client.GetSettings(context.Background())
	require.NoError(t, err)
}

func TestGetSettings_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Session expired"})
	})

	_, err := client.GetSettings(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.Equal(t, "Session expired", MessageOf(err))
}

func TestGetSettings_Malformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	})

	_, err := client.GetSettings(context.Background())
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestGetSettings_MissingData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	_, err := client.GetSettings(context.Background())
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestSaveSettings_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(50), body["volume_level"])
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Username already taken"})
	})

	_, err := client.SaveSettings(context.Background(), map[string]any{"volume_level": 50})
	require.Error(t, err)
	assert.Equal(t, KindRejected, KindOf(err))
	assert.Equal(t, "Username already taken", MessageOf(err))
}

func TestSaveSettings_FieldErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Some settings are invalid",
			"errors":  map[string]string{"profile_opacity": "Opacity must be between 0 and 100"},
		})
	})

	_, err := client.SaveSettings(context.Background(), map[string]any{"profile_opacity": 150})
	assert.Equal(t, KindRejected, KindOf(err))
	assert.Equal(t, "Some settings are invalid", MessageOf(err))
	assert.Equal(t, map[string]string{"profile_opacity": "Opacity must be between 0 and 100"}, FieldErrorsOf(err))
	assert.Nil(t, FieldErrorsOf(nil))
}

func TestSaveSettings_SuccessFalse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "nope"})
	})

	_, err := client.SaveSettings(context.Background(), map[string]any{})
	assert.Equal(t, KindRejected, KindOf(err))
	assert.Equal(t, "nope", MessageOf(err))
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url).GetSettings(context.Background())
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestLoginStoresToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": "jwt-token"})
		case "/auth/logout":
			assert.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		}
	})

	token, err := client.Login(context.Background(), "admin", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, "jwt-token", client.Token())

	require.NoError(t, client.Logout(context.Background()))
	assert.Empty(t, client.Token())
}

func TestTwoFactorCalls(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/2fa/generate":
			writeJSON(w, http.StatusOK, map[string]any{
				"success":         true,
				"secret":          "JBSWY3DPEHPK3PXP",
				"qr_code_url":     "data:image/png;base64,AAAA",
				"backup_codes":    []string{"a", "b"},
				"already_enabled": true,
			})
		case "/auth/2fa/verify":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["code"] != "123456" {
				writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid verification code"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "backup_codes": []string{"a", "b"}})
		case "/auth/2fa/disable":
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Incorrect password"})
		}
	})
	ctx := context.Background()

	setup, err := client.GenerateTwoFactor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", setup.Secret)
	assert.True(t, setup.AlreadyEnabled)

	codes, err := client.VerifyTwoFactor(ctx, "123456", setup.Secret)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, codes)

	_, err = client.VerifyTwoFactor(ctx, "000000", setup.Secret)
	assert.Equal(t, "Invalid verification code", MessageOf(err))

	err = client.DisableTwoFactor(ctx, "password")
	assert.Equal(t, KindRejected, KindOf(err))
	assert.Equal(t, "Incorrect password", MessageOf(err))
}

func TestUploadAsset(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "avatar", r.FormValue("type"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte("png-bytes"), data)
		assert.Equal(t, "me.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"url": "https://cdn.example.com/me.png"}})
	})

	url, err := client.UploadAsset(context.Background(), "avatar", "me.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/me.png", url)
}
